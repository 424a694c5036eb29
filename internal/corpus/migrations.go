package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"OpenMCP-Intent/deploy/migrations"
	xerrors "OpenMCP-Intent/internal/errors"
)

var embeddedMigrations fs.FS = migrations.Files

// migrationFile 是一份语料表结构脚本，checksum 用于发现上线后被改动的脚本。
type migrationFile struct {
	version    string
	name       string
	checksum   string
	statements []string
}

const createCorpusMigrationsSQL = `CREATE TABLE IF NOT EXISTS corpus_schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        name VARCHAR(128) NOT NULL,
        checksum CHAR(64) NOT NULL,
        applied_at BIGINT NOT NULL
)`

const selectCorpusMigrationsSQL = `SELECT version, checksum FROM corpus_schema_migrations`

const insertCorpusMigrationSQL = `INSERT INTO corpus_schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)`

// runMigrations 将 prompts 表升级到程序内嵌的最新版本，返回当前结构版本。
// 数据库版本高于程序已知版本或已执行脚本内容变化时拒绝启动，避免旧程序写坏新表结构。
func (s *MySQLStore) runMigrations(ctx context.Context) (string, error) {
	files, err := loadMigrationFiles(embeddedMigrations)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", xerrors.New(xerrors.CodeInitializationFailure, "未找到语料表结构脚本")
	}
	latest := files[len(files)-1].version

	if _, err := s.db.ExecContext(ctx, createCorpusMigrationsSQL); err != nil {
		return "", fmt.Errorf("创建 corpus_schema_migrations 表失败: %w", err)
	}
	applied, err := s.loadAppliedChecksums(ctx)
	if err != nil {
		return "", err
	}

	known := make(map[string]migrationFile, len(files))
	for _, f := range files {
		known[f.version] = f
	}
	for version, checksum := range applied {
		f, ok := known[version]
		if !ok {
			if version > latest {
				return "", xerrors.New(xerrors.CodeInitializationFailure,
					fmt.Sprintf("语料表结构版本 %s 高于程序支持的 %s", version, latest),
					xerrors.WithMetadata("schema_version", version))
			}
			continue
		}
		if checksum != f.checksum {
			return "", xerrors.New(xerrors.CodeInitializationFailure,
				fmt.Sprintf("迁移脚本 %s 在执行后被修改", f.name),
				xerrors.WithMetadata("schema_version", version))
		}
	}

	for _, f := range files {
		if _, ok := applied[f.version]; ok {
			continue
		}
		if err := s.applyMigration(ctx, f); err != nil {
			return "", err
		}
	}
	return latest, nil
}

func (s *MySQLStore) loadAppliedChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, selectCorpusMigrationsSQL)
	if err != nil {
		return nil, fmt.Errorf("查询 corpus_schema_migrations 失败: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("解析 corpus_schema_migrations 失败: %w", err)
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

// applyMigration 在单个事务中执行一份脚本并登记版本。
func (s *MySQLStore) applyMigration(ctx context.Context, f migrationFile) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启迁移事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range f.statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行迁移 %s 第 %d 条语句失败: %w", f.name, i+1, err)
		}
	}
	if _, err = tx.ExecContext(ctx, insertCorpusMigrationSQL, f.version, f.name, f.checksum, time.Now().Unix()); err != nil {
		return fmt.Errorf("登记迁移版本失败: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("提交迁移事务失败: %w", err)
	}
	return nil
}

// loadMigrationFiles 读取 NNNN_xxx.sql 形式的脚本并按版本排序，版本号重复视为错误。
func loadMigrationFiles(fsys fs.FS) ([]migrationFile, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("读取迁移目录失败: %w", err)
	}

	files := make([]migrationFile, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		version := parseMigrationVersion(name)
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("迁移脚本 %s 与 %s 版本号重复", name, prev)
		}
		seen[version] = name

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("读取迁移文件 %s 失败: %w", name, err)
		}
		statements := splitSQLStatements(string(content))
		if len(statements) == 0 {
			continue
		}
		sum := sha256.Sum256(content)
		files = append(files, migrationFile{
			version:    version,
			name:       name,
			checksum:   hex.EncodeToString(sum[:]),
			statements: statements,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// splitSQLStatements 按分号切分脚本，忽略 -- 注释行，脚本中不允许出现字符串内的分号。
func splitSQLStatements(content string) []string {
	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var statements []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if trimmed := strings.TrimSpace(stmt); trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements
}

func parseMigrationVersion(name string) string {
	if idx := strings.IndexAny(name, "_."); idx > 0 {
		return name[:idx]
	}
	return name
}
