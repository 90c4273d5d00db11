package router

import "github.com/readysettech/proxysql-scheduler/internal/config"

// dialectWords' prefix and keyword give the MySQL-family and PostgreSQL-family
// forms of every control-plane statement in §6. The two dialects differ
// only in the table-name prefix and the admin-command keyword, so a small
// string-templating helper is enough — no deep dialect class hierarchy
// (§9 design note: dialect polymorphism).
type dialectWords struct {
	prefix  string
	keyword string
}

func wordsFor(dt config.DatabaseType) dialectWords {
	if dt == config.PostgreSQL {
		return dialectWords{prefix: "pgsql_", keyword: "PGSQL"}
	}
	return dialectWords{prefix: "mysql_", keyword: "MYSQL"}
}

func (w dialectWords) serversTable() string    { return w.prefix + "servers" }
func (w dialectWords) queryRulesTable() string { return w.prefix + "query_rules" }

func (w dialectWords) loadServers() string { return "LOAD " + w.keyword + " SERVERS TO RUNTIME" }
func (w dialectWords) saveServers() string { return "SAVE " + w.keyword + " SERVERS TO DISK" }

func (w dialectWords) loadQueryRules() string {
	return "LOAD " + w.keyword + " QUERY RULES TO RUNTIME"
}
func (w dialectWords) saveQueryRules() string {
	return "SAVE " + w.keyword + " QUERY RULES TO DISK"
}
