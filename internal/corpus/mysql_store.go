package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "OpenMCP-Intent/internal/errors"
	"OpenMCP-Intent/pkg/logger"
)

// MySQLConfig 描述 MySQL 连接池参数。
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// MySQLStore 使用 MySQL 保存语料，表结构由内嵌迁移脚本维护。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建连接池并执行迁移。
func NewMySQLStore(ctx context.Context, cfg MySQLConfig) (*MySQLStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := &MySQLStore{db: db}
	version, err := store.runMigrations(ctx)
	if err != nil {
		db.Close()
		if _, coded := xerrors.From(err); coded {
			return nil, err
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行语料库迁移失败")
	}
	logger.Named("corpus").Info("语料库表结构就绪", slog.String("schema_version", version))
	return store, nil
}

func openDatabase(ctx context.Context, cfg MySQLConfig) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "MySQL DSN 格式错误")
	}
	// JSON 列需要 utf8mb4 才能完整保存非 ASCII 指令。
	if dsn.Params == nil {
		dsn.Params = map[string]string{}
	}
	if _, ok := dsn.Params["charset"]; !ok {
		dsn.Params["charset"] = "utf8mb4"
	}
	connector, err := mysql.NewConnector(dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "创建 MySQL 连接器失败")
	}
	db := sql.OpenDB(connector)

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}
	return db, nil
}

const insertPromptSQL = `INSERT INTO prompts
    (id, prompt, entities, intent, annotated, created_at)
    VALUES (?, ?, ?, ?, ?, ?)`

// Append 实现 Store 接口。
func (s *MySQLStore) Append(ctx context.Context, record Record) error {
	entities := record.Entities
	if entities == nil {
		entities = []Entity{}
	}
	encoded, err := json.Marshal(entities)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化实体失败")
	}
	var intent any
	if record.Intent != nil {
		intent = *record.Intent
	}
	annotated := 0
	if record.Annotated() {
		annotated = 1
	}
	if _, err := s.db.ExecContext(ctx, insertPromptSQL,
		record.ID,
		record.Prompt,
		string(encoded),
		intent,
		annotated,
		record.CreatedAt,
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入语料失败")
	}
	return nil
}

// List 实现 Store 接口。
func (s *MySQLStore) List(ctx context.Context, opts ...ListOption) ([]Record, error) {
	options := buildListOptions(opts)
	query, args := buildListQuery(options)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询语料失败")
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			record   Record
			entities []byte
			intent   sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.Prompt, &entities, &intent, &record.CreatedAt); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析语料记录失败")
		}
		if err := json.Unmarshal(entities, &record.Entities); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析实体字段失败")
		}
		if record.Entities == nil {
			record.Entities = []Entity{}
		}
		if intent.Valid {
			value := intent.String
			record.Intent = &value
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历语料记录失败")
	}
	if options.Limit < 0 {
		return options.page(records), nil
	}
	return records, nil
}

func buildListQuery(options ListOptions) (string, []any) {
	var (
		b     strings.Builder
		where []string
		args  []any
	)
	b.WriteString(`SELECT id, prompt, entities, intent, created_at FROM prompts`)
	if options.Annotated != nil {
		where = append(where, "annotated = ?")
		if *options.Annotated {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}
	if options.Query != "" {
		where = append(where, "LOWER(prompt) LIKE ?")
		args = append(args, "%"+escapeLike(strings.ToLower(options.Query))+"%")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if options.Order == SortByCreatedAsc {
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	} else {
		b.WriteString(" ORDER BY created_at DESC, id DESC")
	}
	if options.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, options.Limit, options.Offset)
	}
	return b.String(), args
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

// Ping 检查数据库连通性，供健康检查使用。
func (s *MySQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "MySQL 不可用")
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*MySQLStore)(nil)
