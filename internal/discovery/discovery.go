// Package discovery implements the Query Discovery Engine (§4.3): it builds
// the ranking SQL for the configured mode, paginates candidates out of the
// Router's stats table, filters by Accelerator support, and orchestrates
// cache install plus rule install across every online Accelerator.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/readysettech/proxysql-scheduler/internal/config"
	"github.com/readysettech/proxysql-scheduler/internal/logging"
	"github.com/readysettech/proxysql-scheduler/internal/query"
	"github.com/readysettech/proxysql-scheduler/internal/router"
)

// ErrUnimplementedRanking is returned when query_discovery_mode is External:
// the reference declares the mode in config but never implements its
// ranking source, and implementers are told to gate it behind a clear
// error rather than guess a definition (§9 design note).
var ErrUnimplementedRanking = errors.New("discovery: External ranking mode has no implementation")

// orderByExpr maps a DiscoveryMode to the §4.3 ranking table's ORDER BY
// expression.
func orderByExpr(mode config.DiscoveryMode) (string, error) {
	switch mode {
	case config.CountStar:
		return "s.count_star", nil
	case config.SumTime:
		return "s.sum_time", nil
	case config.SumRowsSent:
		return "s.sum_rows_sent", nil
	case config.MeanTime:
		return "(s.sum_time / s.count_star)", nil
	case config.ExecutionTimeDistance:
		return "(s.max_time - s.min_time)", nil
	case config.QueryThroughput:
		return "(s.count_star / s.sum_time)", nil
	case config.WorstBestCase:
		return "s.min_time", nil
	case config.WorstWorstCase:
		return "s.max_time", nil
	case config.DistanceMeanMax:
		return "(s.max_time - (s.sum_time / s.count_star))", nil
	case config.External:
		return "", ErrUnimplementedRanking
	default:
		return "", fmt.Errorf("discovery: unrecognized query_discovery_mode %q", mode)
	}
}

// systemSchemas are excluded from candidate selection (§4.3).
var systemSchemas = []string{"sys", "information_schema", "performance_schema", "mysql"}

// Engine runs one query-discovery pass (§4.3).
type Engine struct {
	facade *router.Facade

	mode            config.DiscoveryMode
	minExecution    int
	minRowsSent     int
	sourceHostgrp   int
	readysetUser    string
	numberOfQueries int
	ruleTable       string
	statsTable      string

	offset int
}

// New constructs an Engine from cfg, bound to facade for all Router reads
// and writes. ruleTable and statsTable are computed the same way
// router.wordsFor picks its dialect prefix, so a PostgreSQL-family
// deployment's ranking query joins against pgsql_query_rules and reads from
// stats_pgsql_query_digest rather than the MySQL-family names.
func New(facade *router.Facade, cfg *config.Config) *Engine {
	prefix := "mysql_"
	if cfg.DatabaseType == config.PostgreSQL {
		prefix = "pgsql_"
	}

	return &Engine{
		facade:          facade,
		mode:            cfg.QueryDiscoveryMode,
		minExecution:    cfg.QueryDiscoveryMinExecution,
		minRowsSent:     cfg.QueryDiscoveryMinRowSent,
		sourceHostgrp:   cfg.SourceHostgroup,
		readysetUser:    cfg.ReadysetUser,
		numberOfQueries: cfg.NumberOfQueries,
		ruleTable:       prefix + "query_rules",
		statsTable:      "stats_" + prefix + "query_digest",
	}
}

// Run performs one discovery pass (§4.3, §5 ordering guarantees):
// mirror promotion first, then paginated candidate discovery, stopping
// when a page is empty or the page cap is reached, committing the rule
// table at most once at the end if anything changed.
func (e *Engine) Run(ctx context.Context) error {
	if len(e.facade.OnlineAccelerators()) == 0 {
		logging.Default.Note("No online accelerators, skipping query discovery")
		return nil
	}

	changed, err := e.facade.AdjustMirrorRules(ctx)
	if err != nil {
		return fmt.Errorf("discovery: adjusting mirror rules: %w", err)
	}

	routedCount, err := e.facade.RoutedDigestCount(ctx)
	if err != nil {
		return fmt.Errorf("discovery: counting routed digests: %w", err)
	}

	for routedCount < e.numberOfQueries {
		candidates, err := e.findQueriesToCache(ctx)
		if err != nil {
			return fmt.Errorf("discovery: finding candidates: %w", err)
		}
		if len(candidates) == 0 {
			break
		}

		for _, c := range candidates {
			if routedCount >= e.numberOfQueries {
				break
			}

			added, err := e.processCandidate(ctx, c)
			if err != nil {
				return err
			}
			if added {
				changed = true
				routedCount++
			}
		}

		e.offset += len(candidates)
	}

	if changed {
		if err := e.facade.Commit(ctx); err != nil {
			return fmt.Errorf("discovery: committing rule table: %w", err)
		}
	}

	return nil
}

// processCandidate runs the per-candidate protocol (§4.3, §5 ordering
// guarantee 3): support probe, then — if supported — cache install on
// every online Accelerator, then rule insert. A probe error is logged and
// treated as "skip"; the run continues with the next candidate.
func (e *Engine) processCandidate(ctx context.Context, c query.Candidate) (bool, error) {
	first := e.facade.FirstOnlineAccelerator()
	if first == nil {
		return false, nil
	}

	logging.Default.Note("Going to test query support for %s", c.DigestText)
	supported, err := first.CheckQuerySupport(ctx, c.DigestText, c.Schema)
	if err != nil {
		logging.Default.Warning("Failed to check query support: %v", err)
		return false, nil
	}
	if !supported {
		logging.Default.Note("Query is not supported")
		return false, nil
	}

	logging.Default.Note("Query is supported, adding it to router and accelerators")
	for _, h := range e.facade.OnlineAccelerators() {
		if err := h.CacheQuery(ctx, c); err != nil {
			return false, fmt.Errorf("discovery: installing cache on %s:%d: %w", h.Hostname, h.Port, err)
		}
	}

	if err := e.facade.AddAsQueryRule(ctx, c); err != nil {
		return false, fmt.Errorf("discovery: inserting query rule: %w", err)
	}
	return true, nil
}

// findQueriesToCache runs one page of the ranking query and returns its
// rows as Candidates, with digest_text normalised (§4.3).
func (e *Engine) findQueriesToCache(ctx context.Context) ([]query.Candidate, error) {
	orderBy, err := orderByExpr(e.mode)
	if err != nil {
		return nil, err
	}

	stmt := e.queryBuilder(orderBy)
	rows, err := e.facade.Conn().Query(ctx, stmt)
	if err != nil {
		return nil, err
	}

	out := make([]query.Candidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, query.Candidate{
			DigestText: Normalise(row["digest_text"]),
			Digest:     row["digest"],
			Schema:     row["schemaname"],
			User:       e.readysetUser,
		})
	}
	return out, nil
}

// queryBuilder builds the ranking SQL for the current offset (§4.3, §6
// Source-stats query). Candidates are restricted to s.hostgroup =
// source_hostgroup, username = readyset_user, a non-system schema, a
// SELECT...FROM shape without a literal "?=?", above both minima, and with
// no existing rule for the digest (anti-join on q.rule_id IS NULL).
func (e *Engine) queryBuilder(orderBy string) string {
	excluded := make([]string, len(systemSchemas))
	for i, s := range systemSchemas {
		excluded[i] = fmt.Sprintf("'%s'", s)
	}

	return fmt.Sprintf(
		`SELECT s.digest_text, s.digest, s.schemaname
FROM %s s
LEFT JOIN %s q USING(digest)
WHERE s.hostgroup = %d
AND s.username = '%s'
AND s.schemaname NOT IN (%s)
AND s.digest_text LIKE 'SELECT%%FROM%%'
AND s.digest_text NOT LIKE '%%?=?%%'
AND s.count_star > %d
AND s.sum_rows_sent > %d
AND q.rule_id IS NULL
ORDER BY %s DESC
LIMIT %d OFFSET %d`,
		e.statsTable, e.ruleTable, e.sourceHostgrp, e.readysetUser, strings.Join(excluded, ", "),
		e.minExecution, e.minRowsSent, orderBy, e.numberOfQueries, e.offset,
	)
}

// Normalise rewrites digest_text's two documented placeholder shapes
// (§4.3): a comma-separated run collapses to exactly three placeholders,
// and a date-shaped run collapses to one. No other rewrite is performed,
// and applying it twice is a no-op (testable property 5).
func Normalise(digestText string) string {
	out := strings.ReplaceAll(digestText, "?,?,?,...", "?,?,?")
	out = strings.ReplaceAll(out, "?-?-?", "?")
	return out
}
