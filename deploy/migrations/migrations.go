// Package migrations 内嵌语料库使用的 MySQL 表结构迁移脚本。
package migrations

import "embed"

// Files 暴露按版本号排序执行的 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
