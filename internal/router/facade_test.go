package router

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readysettech/proxysql-scheduler/internal/accelerator"
	"github.com/readysettech/proxysql-scheduler/internal/config"
	"github.com/readysettech/proxysql-scheduler/internal/query"
	"github.com/readysettech/proxysql-scheduler/internal/sqlconn"
)

// fakeConn is a minimal sqlconn.Conn that records every statement it is
// asked to run and answers Query/QueryFirst from a map keyed by the exact
// statement text, letting
// the facade's tests assert on exact SQL shape without a live Router.
type fakeConn struct {
	drops   []string
	queries map[string]sqlconn.Rows
}

func newFakeConn() *fakeConn {
	return &fakeConn{queries: make(map[string]sqlconn.Rows)}
}

func (f *fakeConn) Query(ctx context.Context, sql string) (sqlconn.Rows, error) {
	for pattern, rows := range f.queries {
		if pattern == sql {
			return rows, nil
		}
	}
	return nil, nil
}

func (f *fakeConn) QueryFirst(ctx context.Context, sql string) (sqlconn.Row, error) {
	rows, err := f.Query(ctx, sql)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (f *fakeConn) QueryDrop(ctx context.Context, sql string) error {
	f.drops = append(f.drops, sql)
	return nil
}

func (f *fakeConn) Close() error { return nil }

func newTestFacade(conn *fakeConn, warmup int, dryRun bool) *Facade {
	return &Facade{
		conn:              conn,
		words:             wordsFor(config.MySQL),
		readysetHostgroup: 42,
		warmupTimeS:       warmup,
		dryRun:            dryRun,
	}
}

func TestAddAsQueryRuleWarmup(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 60, false)

	c := query.Candidate{DigestText: "SELECT a FROM t", Digest: "D1", Schema: "app", User: "app_user"}
	require.NoError(t, f.AddAsQueryRule(context.Background(), c))

	require.Len(t, conn.drops, 1)
	assert.Contains(t, conn.drops[0], "mirror_hostgroup")
	assert.Contains(t, conn.drops[0], "Mirror by readyset scheduler at")
	assert.True(t, f.rulesDirty)
}

func TestAddAsQueryRuleNoWarmup(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 0, false)

	c := query.Candidate{DigestText: "SELECT a FROM t", Digest: "D1", Schema: "app", User: "app_user"}
	require.NoError(t, f.AddAsQueryRule(context.Background(), c))

	require.Len(t, conn.drops, 1)
	assert.Contains(t, conn.drops[0], "destination_hostgroup")
	assert.Contains(t, conn.drops[0], "Added by readyset scheduler at")
}

func TestAddAsQueryRuleDryRunIssuesNoWrite(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 0, true)

	c := query.Candidate{DigestText: "SELECT a FROM t", Digest: "D1", Schema: "app", User: "app_user"}
	require.NoError(t, f.AddAsQueryRule(context.Background(), c))

	assert.Empty(t, conn.drops)
	assert.True(t, f.rulesDirty)
}

func TestAdjustMirrorRulesNotYetElapsed(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 60, false)

	ts := time.Now().Add(-30 * time.Second).Format(timestampLayout)
	selectStmt := fmt.Sprintf(
		"SELECT rule_id, comment FROM mysql_query_rules WHERE comment LIKE '%s: ____-__-__ __:__:__'",
		mirrorToken,
	)
	conn.queries[selectStmt] = sqlconn.Rows{
		{"rule_id": "7", "comment": fmt.Sprintf("%s: %s", mirrorToken, ts)},
	}

	updated, err := f.AdjustMirrorRules(context.Background())
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Empty(t, conn.drops)
}

func TestAdjustMirrorRulesElapsed(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 60, false)

	ts := time.Now().Add(-120 * time.Second).Format(timestampLayout)
	selectStmt := fmt.Sprintf(
		"SELECT rule_id, comment FROM mysql_query_rules WHERE comment LIKE '%s: ____-__-__ __:__:__'",
		mirrorToken,
	)
	conn.queries[selectStmt] = sqlconn.Rows{
		{"rule_id": "7", "comment": fmt.Sprintf("%s: %s", mirrorToken, ts)},
	}

	updated, err := f.AdjustMirrorRules(context.Background())
	require.NoError(t, err)
	assert.True(t, updated)
	require.Len(t, conn.drops, 1)
	assert.Contains(t, conn.drops[0], "mirror_hostgroup = NULL")
	assert.Contains(t, conn.drops[0], "destination_hostgroup = 42")
	assert.True(t, f.rulesDirty)
}

func TestHealthCheckNoOpWhenStatusUnchanged(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 0, false)
	f.accelerators = []*accelerator.Handle{
		{Hostname: "rs1", Port: 3307, RouterStatus: accelerator.SHUNNED},
	}

	require.NoError(t, f.HealthCheck(context.Background()))
	assert.Empty(t, conn.drops)
	assert.Equal(t, accelerator.SHUNNED, f.accelerators[0].RouterStatus)
}

func TestCommitOnlyWhenDirty(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 0, false)

	require.NoError(t, f.Commit(context.Background()))
	assert.Empty(t, conn.drops)

	f.rulesDirty = true
	require.NoError(t, f.Commit(context.Background()))
	require.Len(t, conn.drops, 2)
	assert.Equal(t, "LOAD MYSQL QUERY RULES TO RUNTIME", conn.drops[0])
	assert.Equal(t, "SAVE MYSQL QUERY RULES TO DISK", conn.drops[1])
	assert.False(t, f.rulesDirty)
}

func TestCommitSkippedInDryRun(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 0, true)
	f.rulesDirty = true

	require.NoError(t, f.Commit(context.Background()))
	assert.Empty(t, conn.drops)
}

func TestOnlineAcceleratorsFiltersByRouterStatus(t *testing.T) {
	f := &Facade{accelerators: []*accelerator.Handle{
		{Hostname: "a", RouterStatus: accelerator.ONLINE},
		{Hostname: "b", RouterStatus: accelerator.SHUNNED},
		{Hostname: "c", RouterStatus: accelerator.ONLINE},
	}}

	online := f.OnlineAccelerators()
	require.Len(t, online, 2)
	assert.Equal(t, "a", online[0].Hostname)
	assert.Equal(t, "c", online[1].Hostname)

	assert.Equal(t, "a", f.FirstOnlineAccelerator().Hostname)
}

func TestRoutedDigestCount(t *testing.T) {
	conn := newFakeConn()
	f := newTestFacade(conn, 0, false)

	selectStmt := fmt.Sprintf(
		"SELECT digest FROM mysql_query_rules WHERE comment LIKE '%s%%' OR comment LIKE '%s%%'",
		mirrorToken, destinationToken,
	)
	conn.queries[selectStmt] = sqlconn.Rows{{"digest": "D1"}, {"digest": "D2"}}

	n, err := f.RoutedDigestCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
