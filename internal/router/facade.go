// Package router implements the Router Facade (§4.4): the owner of the
// Router connection and every Accelerator Handle, and the only component
// that writes to the Router.
package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/readysettech/proxysql-scheduler/internal/accelerator"
	"github.com/readysettech/proxysql-scheduler/internal/config"
	"github.com/readysettech/proxysql-scheduler/internal/logging"
	"github.com/readysettech/proxysql-scheduler/internal/query"
	"github.com/readysettech/proxysql-scheduler/internal/sqlconn"
)

const (
	mirrorToken      = "Mirror by readyset scheduler at"
	destinationToken = "Added by readyset scheduler at"
	timestampLayout  = "2006-01-02 15:04:05"
)

// Facade owns the Router connection and every Accelerator Handle (§3
// Ownership). Handles never hold a back-reference to it; Discovery borrows
// it to perform writes.
type Facade struct {
	conn              sqlconn.Conn
	words             dialectWords
	readysetHostgroup int
	warmupTimeS       int
	dryRun            bool

	accelerators []*accelerator.Handle

	rulesDirty bool
}

// New opens the Router connection and constructs one Accelerator Handle per
// qualifying server row (§4.4 Construction): every server in
// readyset_hostgroup with status ONLINE, SHUNNED, or OFFLINE_SOFT whose
// comment mentions "readyset" (case-insensitive).
func New(ctx context.Context, cfg *config.Config, dryRun bool) (*Facade, error) {
	dialect := sqlconn.MySQL
	if cfg.DatabaseType == config.PostgreSQL {
		dialect = sqlconn.PostgreSQL
	}

	conn, err := sqlconn.Open(ctx, sqlconn.Params{
		Dialect:  dialect,
		Host:     cfg.ProxySQLHost,
		Port:     cfg.ProxySQLPort,
		User:     cfg.ProxySQLUser,
		Password: cfg.ProxySQLPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("router: connect %s:%d: %w", cfg.ProxySQLHost, cfg.ProxySQLPort, err)
	}

	words := wordsFor(cfg.DatabaseType)

	f := &Facade{
		conn:              conn,
		words:             words,
		readysetHostgroup: cfg.ReadysetHostgroup,
		warmupTimeS:       cfg.WarmupTimeS,
		dryRun:            dryRun,
	}

	stmt := fmt.Sprintf(
		"SELECT hostname, port, status, comment FROM %s WHERE hostgroup_id = %d AND status IN ('ONLINE','SHUNNED','OFFLINE_SOFT')",
		words.serversTable(), cfg.ReadysetHostgroup,
	)
	rows, err := conn.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("router: reading %s: %w", words.serversTable(), err)
	}

	for _, row := range rows {
		if !strings.Contains(strings.ToLower(row["comment"]), "readyset") {
			continue
		}
		port, err := strconv.Atoi(row["port"])
		if err != nil {
			return nil, fmt.Errorf("router: server row has non-numeric port %q: %w", row["port"], err)
		}
		f.accelerators = append(f.accelerators, accelerator.New(ctx, row["hostname"], port, row["status"], cfg))
	}

	return f, nil
}

// NewTestFacade builds a Facade directly from an already-open connection
// and accelerator set, bypassing New's dial-and-discover step. It exists so
// other packages' tests (notably internal/discovery) can drive the full
// Facade against a fake sqlconn.Conn without a live Router, while
// production code always goes through New.
func NewTestFacade(conn sqlconn.Conn, cfg *config.Config, dryRun bool, accelerators []*accelerator.Handle) *Facade {
	return &Facade{
		conn:              conn,
		words:             wordsFor(cfg.DatabaseType),
		readysetHostgroup: cfg.ReadysetHostgroup,
		warmupTimeS:       cfg.WarmupTimeS,
		dryRun:            dryRun,
		accelerators:      accelerators,
	}
}

// Close releases the Router connection and every Accelerator Handle's
// connection.
func (f *Facade) Close() error {
	for _, h := range f.accelerators {
		h.Close()
	}
	return f.conn.Close()
}

// Accelerators returns every Accelerator Handle the facade owns.
func (f *Facade) Accelerators() []*accelerator.Handle { return f.accelerators }

// OnlineAccelerators returns the handles currently carrying Router status
// ONLINE.
func (f *Facade) OnlineAccelerators() []*accelerator.Handle {
	var out []*accelerator.Handle
	for _, h := range f.accelerators {
		if h.RouterStatus == accelerator.ONLINE {
			out = append(out, h)
		}
	}
	return out
}

// FirstOnlineAccelerator returns the first handle with Router status
// ONLINE, or nil if none.
func (f *Facade) FirstOnlineAccelerator() *accelerator.Handle {
	for _, h := range f.accelerators {
		if h.RouterStatus == accelerator.ONLINE {
			return h
		}
	}
	return nil
}

// HealthCheck runs the health sweep (§4.4): probe every Accelerator, and
// for each whose intended Router status differs from its stored one, log
// the transition, update the handle, and — unless dry-run — write the
// Router server row and commit the server table. Property 2: an Accelerator
// whose intended status equals its current one causes no write at all.
func (f *Facade) HealthCheck(ctx context.Context) error {
	type change struct {
		handle *accelerator.Handle
		status accelerator.RouterStatus
	}

	var changes []change
	for _, h := range f.accelerators {
		status, err := h.CheckReady(ctx)
		if err != nil {
			logging.Default.Error("cannot check accelerator status for %s:%d: %v", h.Hostname, h.Port, err)
		}
		changes = append(changes, change{handle: h, status: status})
	}

	for _, c := range changes {
		if c.handle.RouterStatus == c.status {
			continue
		}

		logging.Default.Note(
			"Server HG: %d, Host: %s, Port: %d is currently %s on Router and %s on Accelerator. Changing to %s",
			f.readysetHostgroup, c.handle.Hostname, c.handle.Port, c.handle.RouterStatus, c.handle.Status, c.status,
		)
		c.handle.RouterStatus = c.status

		if f.dryRun {
			logging.Default.Info("Dry run, skipping changes to Router")
			continue
		}

		where := fmt.Sprintf("WHERE hostgroup_id = %d AND hostname = '%s' AND port = %d",
			f.readysetHostgroup, c.handle.Hostname, c.handle.Port)
		updateStmt := fmt.Sprintf("UPDATE %s SET status = '%s' %s", f.words.serversTable(), c.status, where)
		if err := f.conn.QueryDrop(ctx, updateStmt); err != nil {
			return fmt.Errorf("router: updating server status: %w", err)
		}
		if err := f.conn.QueryDrop(ctx, f.words.loadServers()); err != nil {
			return fmt.Errorf("router: %s: %w", f.words.loadServers(), err)
		}
		if err := f.conn.QueryDrop(ctx, f.words.saveServers()); err != nil {
			return fmt.Errorf("router: %s: %w", f.words.saveServers(), err)
		}
	}

	return nil
}

// AddAsQueryRule inserts a Router rule for c (§4.4 Rule insertion). With
// warmup_time_s > 0 the rule targets mirror_hostgroup and carries the
// mirror token; otherwise it targets destination_hostgroup directly.
// Dry-run elides the write but still marks the rule table dirty so the
// caller's commit-on-change logic matches the real run's shape.
func (f *Facade) AddAsQueryRule(ctx context.Context, c query.Candidate) error {
	ts := time.Now().Format(timestampLayout)

	var stmt string
	if f.warmupTimeS > 0 {
		stmt = fmt.Sprintf(
			"INSERT INTO %s (username, mirror_hostgroup, active, digest, apply, comment) VALUES ('%s', %d, 1, '%s', 1, '%s: %s')",
			f.words.queryRulesTable(), c.User, f.readysetHostgroup, c.Digest, mirrorToken, ts,
		)
	} else {
		stmt = fmt.Sprintf(
			"INSERT INTO %s (username, destination_hostgroup, active, digest, apply, comment) VALUES ('%s', %d, 1, '%s', 1, '%s: %s')",
			f.words.queryRulesTable(), c.User, f.readysetHostgroup, c.Digest, destinationToken, ts,
		)
	}

	f.rulesDirty = true
	if f.dryRun {
		return nil
	}

	if err := f.conn.QueryDrop(ctx, stmt); err != nil {
		return fmt.Errorf("router: inserting query rule: %w", err)
	}

	if f.warmupTimeS > 0 {
		logging.Default.Note("Inserted warm-up rule")
	} else {
		logging.Default.Note("Inserted destination rule")
	}
	return nil
}

// AdjustMirrorRules promotes every mirror rule whose embedded timestamp is
// older than warmup_time_s seconds to a destination rule (§4.4 Mirror
// promotion). It returns whether any rule changed, so the caller knows
// whether a rule-table commit is owed.
//
// The comment timestamp is local wall-clock with no timezone recorded; it
// is parsed by appending the *current* local tz offset, which is what the
// original scheduler does and is preserved here rather than "fixed" — the
// process never runs across a DST boundary within a single invocation, and
// changing this would silently shift every already-written rule's
// effective promotion time.
func (f *Facade) AdjustMirrorRules(ctx context.Context) (bool, error) {
	now := time.Now()
	tz := now.Format("-0700")
	nowFormatted := now.Format(timestampLayout)

	stmt := fmt.Sprintf(
		"SELECT rule_id, comment FROM %s WHERE comment LIKE '%s: ____-__-__ __:__:__'",
		f.words.queryRulesTable(), mirrorToken,
	)
	rows, err := f.conn.Query(ctx, stmt)
	if err != nil {
		return false, fmt.Errorf("router: selecting mirror rules: %w", err)
	}

	updated := false
	for _, row := range rows {
		ruleID := row["rule_id"]
		comment := row["comment"]

		raw := comment
		if idx := strings.Index(comment, mirrorToken+":"); idx >= 0 {
			raw = comment[idx+len(mirrorToken)+1:]
		}
		raw = strings.TrimSpace(raw)
		raw = fmt.Sprintf("%s %s", raw, tz)

		promotedAt, err := time.Parse(timestampLayout+" -0700", raw)
		if err != nil {
			return false, fmt.Errorf("router: rule %s has unparseable timestamp in comment %q: %w", ruleID, comment, err)
		}

		elapsed := now.Sub(promotedAt).Seconds()
		if elapsed <= float64(f.warmupTimeS) {
			continue
		}

		newComment := fmt.Sprintf("%s\n %s: %s", comment, destinationToken, nowFormatted)
		updateStmt := fmt.Sprintf(
			"UPDATE %s SET mirror_hostgroup = NULL, destination_hostgroup = %d, comment = '%s' WHERE rule_id = %s",
			f.words.queryRulesTable(), f.readysetHostgroup, newComment, ruleID,
		)

		if !f.dryRun {
			if err := f.conn.QueryDrop(ctx, updateStmt); err != nil {
				return false, fmt.Errorf("router: promoting rule %s: %w", ruleID, err)
			}
		}

		logging.Default.Note("Updated rule ID %s from warmup to destination", ruleID)
		updated = true
	}

	if updated {
		f.rulesDirty = true
	}
	return updated, nil
}

// RoutedDigestCount returns the number of digests already routed to an
// Accelerator, i.e. already covered by a mirror or destination rule. It
// seeds the discovery engine's page-cap accounting (§4.3).
func (f *Facade) RoutedDigestCount(ctx context.Context) (int, error) {
	stmt := fmt.Sprintf(
		"SELECT digest FROM %s WHERE comment LIKE '%s%%' OR comment LIKE '%s%%'",
		f.words.queryRulesTable(), mirrorToken, destinationToken,
	)
	rows, err := f.conn.Query(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("router: counting routed digests: %w", err)
	}
	return len(rows), nil
}

// Commit applies and persists the rule table (§4.4 Commit): LOAD then SAVE,
// at most once per run, and only if AddAsQueryRule or AdjustMirrorRules
// actually mutated something.
func (f *Facade) Commit(ctx context.Context) error {
	if !f.rulesDirty || f.dryRun {
		return nil
	}
	if err := f.conn.QueryDrop(ctx, f.words.loadQueryRules()); err != nil {
		return fmt.Errorf("router: %s: %w", f.words.loadQueryRules(), err)
	}
	if err := f.conn.QueryDrop(ctx, f.words.saveQueryRules()); err != nil {
		return fmt.Errorf("router: %s: %w", f.words.saveQueryRules(), err)
	}
	f.rulesDirty = false
	return nil
}

// Conn exposes the Router connection so Discovery can run its stats query
// through the same connection the facade owns (§3 Ownership: Discovery
// borrows the Facade to perform writes, including reads that drive them).
func (f *Facade) Conn() sqlconn.Conn { return f.conn }
