package chain

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Catalog models the structure of configs/vocabulary.yaml.
type Catalog struct {
	Networks []Network `yaml:"networks" json:"networks"`
	Tokens   []Token   `yaml:"tokens" json:"tokens"`
}

// Network describes a network name as it appears in user commands.
type Network struct {
	Name    string   `yaml:"name" json:"name"`
	ChainID uint64   `yaml:"chain_id" json:"chain_id"`
	Aliases []string `yaml:"aliases" json:"aliases,omitempty"`
	// RPCURL 可选，用于 Verify 核对节点返回的链 ID。
	RPCURL string `yaml:"rpc_url" json:"rpc_url,omitempty"`
}

// Token describes a token symbol recognized by the parser.
type Token struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Name     string `yaml:"name" json:"name,omitempty"`
	Decimals int    `yaml:"decimals" json:"decimals"`
}

// Default returns a copy of the embedded catalog.
func Default() Catalog {
	catalog, err := parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("内置网络目录无效: %v", err))
	}
	return catalog
}

// LoadCatalog parses the YAML file containing network and token metadata.
// An empty path yields the embedded default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("读取网络目录失败: %w", err)
	}
	catalog, err := parse(content)
	if err != nil {
		return Catalog{}, fmt.Errorf("解析网络目录失败: %w", err)
	}
	return catalog, nil
}

func parse(content []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(content, &catalog); err != nil {
		return Catalog{}, err
	}
	if err := catalog.Validate(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

// Validate ensures names and symbols are present and unique.
func (c Catalog) Validate() error {
	if len(c.Tokens) == 0 {
		return fmt.Errorf("目录中至少需要一个代币")
	}
	seen := make(map[string]string)
	for _, n := range c.Networks {
		name := strings.TrimSpace(n.Name)
		if name == "" {
			return fmt.Errorf("网络名称不能为空")
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("名称 %s 重复（已作为%s出现）", name, prev)
		}
		seen[name] = "网络"
	}
	for _, t := range c.Tokens {
		symbol := strings.TrimSpace(t.Symbol)
		if symbol == "" {
			return fmt.Errorf("代币符号不能为空")
		}
		if prev, ok := seen[symbol]; ok {
			return fmt.Errorf("名称 %s 重复（已作为%s出现）", symbol, prev)
		}
		seen[symbol] = "代币"
	}
	return nil
}

// NetworkNames returns the network names in catalog order.
func (c Catalog) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for _, n := range c.Networks {
		names = append(names, n.Name)
	}
	return names
}

// Symbols returns the token symbols in catalog order.
func (c Catalog) Symbols() []string {
	symbols := make([]string, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		symbols = append(symbols, t.Symbol)
	}
	return symbols
}

// ChainID resolves a network name or alias (case-insensitive) to its chain id.
func (c Catalog) ChainID(network string) (uint64, bool) {
	target := strings.ToLower(strings.TrimSpace(network))
	if target == "" {
		return 0, false
	}
	for _, n := range c.Networks {
		if strings.ToLower(n.Name) == target {
			return n.ChainID, true
		}
		for _, alias := range n.Aliases {
			if strings.ToLower(alias) == target {
				return n.ChainID, true
			}
		}
	}
	return 0, false
}

// Token looks up token metadata by exact symbol.
func (c Catalog) Token(symbol string) (Token, bool) {
	for _, t := range c.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return Token{}, false
}

// Summary renders a stable, human readable listing used by CLI output.
func (c Catalog) Summary() []string {
	lines := make([]string, 0, len(c.Networks)+len(c.Tokens))
	for _, n := range c.Networks {
		lines = append(lines, fmt.Sprintf("network %-10s chain_id=%d", n.Name, n.ChainID))
	}
	tokens := append([]Token(nil), c.Tokens...)
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].Symbol < tokens[j].Symbol })
	for _, t := range tokens {
		lines = append(lines, fmt.Sprintf("token   %-10s decimals=%d", t.Symbol, t.Decimals))
	}
	return lines
}
