package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Verification 是单个网络的链 ID 核对结果。
type Verification struct {
	Network  string
	Expected uint64
	Actual   uint64
	Err      error
}

// OK 表示节点可达且链 ID 与目录一致。
func (v Verification) OK() bool {
	return v.Err == nil && v.Actual == v.Expected
}

// Verify 对配置了 rpc_url 的网络逐一请求 eth_chainId，确认目录中的链 ID 没有写错。
// 未配置 rpc_url 的网络会被跳过。timeout 作用于单个网络。
func (c Catalog) Verify(ctx context.Context, timeout time.Duration) []Verification {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var out []Verification
	for _, n := range c.Networks {
		rpcURL := strings.TrimSpace(n.RPCURL)
		if rpcURL == "" {
			continue
		}
		v := Verification{Network: n.Name, Expected: n.ChainID}
		v.Actual, v.Err = fetchChainID(ctx, rpcURL, timeout)
		out = append(out, v)
	}
	return out
}

func fetchChainID(ctx context.Context, rpcURL string, timeout time.Duration) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, fmt.Errorf("连接节点失败: %w", err)
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("查询链 ID 失败: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("链 ID 超出范围: %s", id)
	}
	return id.Uint64(), nil
}
