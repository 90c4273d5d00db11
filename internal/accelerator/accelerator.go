// Package accelerator implements the Accelerator Handle (§4.2): one per
// in-memory query-accelerator instance, owning its connection and tracking
// both its self-reported Accelerator status and the Router status it was
// last told to carry.
package accelerator

import (
	"context"
	"fmt"
	"strings"

	"github.com/readysettech/proxysql-scheduler/internal/config"
	"github.com/readysettech/proxysql-scheduler/internal/logging"
	"github.com/readysettech/proxysql-scheduler/internal/query"
	"github.com/readysettech/proxysql-scheduler/internal/sqlconn"
)

// Status is the Accelerator's self-reported health, interpreted from
// SHOW READYSET STATUS (§3, §4.2).
type Status int

const (
	Online Status = iota
	SnapshotInProgress
	Maintenance
	Unknown
)

func (s Status) String() string {
	switch s {
	case Online:
		return "Online"
	case SnapshotInProgress:
		return "Snapshot in progress"
	case Maintenance:
		return "Maintenance mode"
	default:
		return "Unknown"
	}
}

// statusFromString parses a SHOW READYSET STATUS "Status" value. Any value
// not recognized defaults to Unknown.
func statusFromString(s string) Status {
	switch strings.ToLower(s) {
	case "online":
		return Online
	case "snapshot in progress":
		return SnapshotInProgress
	case "maintenance mode":
		return Maintenance
	default:
		return Unknown
	}
}

// RouterStatus is the Router-side server status the scheduler writes into
// the Router's server table. It lives in this package, not internal/router,
// so a Handle can compute and store its own intended RouterStatus without
// importing the router facade (§9 design note: cyclic ownership avoided).
type RouterStatus int

const (
	ONLINE RouterStatus = iota
	SHUNNED
	OFFLINE_SOFT
	OFFLINE_HARD
)

func (s RouterStatus) String() string {
	switch s {
	case ONLINE:
		return "ONLINE"
	case SHUNNED:
		return "SHUNNED"
	case OFFLINE_SOFT:
		return "OFFLINE_SOFT"
	case OFFLINE_HARD:
		return "OFFLINE_HARD"
	default:
		return "SHUNNED"
	}
}

// RouterStatusFromString parses a Router server-table status column. An
// unrecognized string defaults to ONLINE, matching the reference's
// fail-open parse (the Router itself only ever writes recognized values
// here, so this only matters for operator-edited rows).
func RouterStatusFromString(s string) RouterStatus {
	switch strings.ToUpper(s) {
	case "ONLINE":
		return ONLINE
	case "SHUNNED":
		return SHUNNED
	case "OFFLINE_SOFT":
		return OFFLINE_SOFT
	case "OFFLINE_HARD":
		return OFFLINE_HARD
	default:
		return ONLINE
	}
}

// RouterStatusFor maps an Accelerator status to its Router status — the
// sole point where accelerator semantics translate to router semantics
// (§3, testable property 1).
func RouterStatusFor(s Status) RouterStatus {
	switch s {
	case Online:
		return ONLINE
	case SnapshotInProgress:
		return SHUNNED
	case Maintenance:
		return OFFLINE_SOFT
	default:
		return SHUNNED
	}
}

// Handle owns one Accelerator's connection and its last-observed statuses
// (§4.2). Handles are created and mutated only by the owning Router Facade;
// they never hold a back-reference to it.
type Handle struct {
	Hostname string
	Port     int

	// RouterStatus reflects the value the Router has been told (or the
	// last-read value if not yet told).
	RouterStatus RouterStatus
	// Status reflects the last successful probe.
	Status Status

	databaseType config.DatabaseType
	conn         sqlconn.Conn
}

// New attempts to open a connection to the Accelerator at host:port. On
// failure it returns a Handle with no connection whose probes fail
// deterministically, matching the reference's "log and continue with an
// absent connection" startup behavior rather than aborting the whole run
// over one unreachable Accelerator.
func New(ctx context.Context, hostname string, port int, initialRouterStatus string, cfg *config.Config) *Handle {
	h := &Handle{
		Hostname:     hostname,
		Port:         port,
		RouterStatus: RouterStatusFromString(initialRouterStatus),
		Status:       Unknown,
		databaseType: cfg.DatabaseType,
	}

	dialect := sqlconn.MySQL
	if cfg.DatabaseType == config.PostgreSQL {
		dialect = sqlconn.PostgreSQL
	}

	conn, err := sqlconn.Open(ctx, sqlconn.Params{
		Dialect:  dialect,
		Host:     hostname,
		Port:     port,
		User:     cfg.ReadysetUser,
		Password: cfg.ReadysetPassword,
	})
	if err != nil {
		logging.Default.Warning("accelerator %s:%d: connection failed: %v", hostname, port, err)
		return h
	}

	h.conn = conn
	return h
}

// NewTestHandle builds a Handle from an already-open connection, bypassing
// New's dial step. It exists so other packages' tests (notably
// internal/discovery) can drive support-probe and cache-install behavior
// against a fake sqlconn.Conn without a live Accelerator; production code
// always goes through New.
func NewTestHandle(hostname string, port int, routerStatus RouterStatus, conn sqlconn.Conn) *Handle {
	return &Handle{
		Hostname:     hostname,
		Port:         port,
		RouterStatus: routerStatus,
		conn:         conn,
	}
}

// CheckReady issues SHOW READYSET STATUS and interprets it per the
// precedence rules in §4.2: an explicit Snapshot Status row wins over a
// general Status row; no recognized row at all yields Unknown/SHUNNED.
func (h *Handle) CheckReady(ctx context.Context) (RouterStatus, error) {
	if h.conn == nil {
		return SHUNNED, fmt.Errorf("accelerator %s:%d: connection not established", h.Hostname, h.Port)
	}

	rows, err := h.conn.Query(ctx, "SHOW READYSET STATUS")
	if err != nil {
		return SHUNNED, fmt.Errorf("accelerator %s:%d: SHOW READYSET STATUS: %w", h.Hostname, h.Port, err)
	}

	statusValue, haveStatus := "", false
	for _, row := range rows {
		field := row["field"]
		value := row["value"]
		if field == "Snapshot Status" && value == "Completed" {
			h.Status = Online
			return ONLINE, nil
		}
		if field == "Snapshot Status" && value == "In Progress" {
			h.Status = SnapshotInProgress
			return SHUNNED, nil
		}
		if field == "Status" && !haveStatus {
			statusValue, haveStatus = value, true
		}
	}
	if haveStatus {
		h.Status = statusFromString(statusValue)
		return RouterStatusFor(h.Status), nil
	}

	h.Status = Unknown
	return SHUNNED, nil
}

// CheckQuerySupport issues USE <schema> then EXPLAIN CREATE CACHE FROM
// <digest_text> and interprets the "supported" column of the first row
// (§4.2).
// Connection absent returns false, not an error — the reference treats an
// unreachable Accelerator as simply unable to support anything, rather than
// failing the candidate.
func (h *Handle) CheckQuerySupport(ctx context.Context, digestText, schema string) (bool, error) {
	if h.conn == nil {
		return false, nil
	}

	if err := h.conn.QueryDrop(ctx, fmt.Sprintf("USE %s", schema)); err != nil {
		return false, fmt.Errorf("accelerator %s:%d: USE %s: %w", h.Hostname, h.Port, schema, err)
	}

	row, err := h.conn.QueryFirst(ctx, fmt.Sprintf("EXPLAIN CREATE CACHE FROM %s", digestText))
	if err != nil {
		return false, fmt.Errorf("accelerator %s:%d: EXPLAIN CREATE CACHE FROM: %w", h.Hostname, h.Port, err)
	}
	if row == nil {
		return false, nil
	}

	decision := row["supported"]
	return decision == "yes" || decision == "cached", nil
}

// CacheQuery issues USE <schema> then CREATE CACHE d_<digest> FROM
// <digest_text> (§4.2).
func (h *Handle) CacheQuery(ctx context.Context, c query.Candidate) error {
	if h.conn == nil {
		return fmt.Errorf("accelerator %s:%d: connection not established", h.Hostname, h.Port)
	}

	if err := h.conn.QueryDrop(ctx, fmt.Sprintf("USE %s", c.Schema)); err != nil {
		return fmt.Errorf("accelerator %s:%d: USE %s: %w", h.Hostname, h.Port, c.Schema, err)
	}

	stmt := fmt.Sprintf("CREATE CACHE d_%s FROM %s", c.Digest, c.DigestText)
	if err := h.conn.QueryDrop(ctx, stmt); err != nil {
		return fmt.Errorf("accelerator %s:%d: CREATE CACHE: %w", h.Hostname, h.Port, err)
	}
	return nil
}

// Describe renders a combined accelerator/router status description for
// transition logging (§4.4 health sweep).
func (h *Handle) Describe() string {
	return fmt.Sprintf("%s:%d accelerator_status=%s router_status=%s", h.Hostname, h.Port, h.Status, h.RouterStatus)
}

// Close releases the handle's connection, if any.
func (h *Handle) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
