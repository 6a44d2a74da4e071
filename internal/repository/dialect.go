package repository

import (
	"regexp"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var pgPlaceholder = regexp.MustCompile(`\$\d+`)

// rebind 将 $1,$2... 占位符转换为目标驱动的格式（SQLite 使用 ?）
func rebind(driver, query string) string {
	if driver != DriverSQLite {
		return query
	}
	return pgPlaceholder.ReplaceAllString(query, "?")
}
