package buildlog

import (
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"megaton-build-go/internal/system"
)

// FileName is the name of the build log inside the target directory.
const FileName = "build.db"

// Entry is one finished compile or link.
type Entry struct {
	BuildID     string
	Output      string
	Kind        string
	CommandHash uint64
	Start       time.Time
	End         time.Time
	ExitCode    int
}

func (e Entry) Duration() time.Duration { return e.End.Sub(e.Start) }

// BuildLog stores every compile and link outcome of every build in sqlite.
// Not safe for concurrent use; only the orchestrator writes to it.
type BuildLog struct {
	conn_   *sqlite.Conn
	insert_ *sqlite.Stmt
}

func Open(path string) (*BuildLog, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, system.PathError(system.KindFS, "cannot open build log", path, err)
	}
	err = sqlitex.ExecuteTransient(conn, "CREATE TABLE IF NOT EXISTS build_log (`id` INTEGER PRIMARY KEY, "+
		"`build_id` TEXT, `output` TEXT, `kind` TEXT, `command_hash` TEXT, "+
		"`start_ms` INTEGER, `end_ms` INTEGER, `exit_code` INTEGER);", nil)
	if err != nil {
		conn.Close()
		return nil, system.PathError(system.KindFS, "cannot initialize build log", path, err)
	}
	insert, err := conn.Prepare("INSERT INTO build_log (`build_id`, `output`, `kind`, `command_hash`, " +
		"`start_ms`, `end_ms`, `exit_code`) VALUES ($build_id, $output, $kind, $command_hash, $start_ms, $end_ms, $exit_code);")
	if err != nil {
		conn.Close()
		return nil, system.PathError(system.KindFS, "cannot initialize build log", path, err)
	}
	return &BuildLog{conn_: conn, insert_: insert}, nil
}

func (this *BuildLog) Close() error {
	return this.conn_.Close()
}

func (this *BuildLog) Record(e Entry) error {
	defer this.insert_.Reset()
	this.insert_.SetText("$build_id", e.BuildID)
	this.insert_.SetText("$output", e.Output)
	this.insert_.SetText("$kind", e.Kind)
	this.insert_.SetText("$command_hash", fmt.Sprintf("%016x", e.CommandHash))
	this.insert_.SetInt64("$start_ms", e.Start.UnixMilli())
	this.insert_.SetInt64("$end_ms", e.End.UnixMilli())
	this.insert_.SetInt64("$exit_code", int64(e.ExitCode))
	if _, err := this.insert_.Step(); err != nil {
		return system.PathError(system.KindFS, "cannot record", e.Output, err)
	}
	return nil
}

// Slowest returns up to n entries of the given build, longest first.
func (this *BuildLog) Slowest(buildID string, n int) ([]Entry, error) {
	var ret []Entry
	err := sqlitex.ExecuteTransient(this.conn_,
		"SELECT `output`, `kind`, `command_hash`, `start_ms`, `end_ms`, `exit_code` FROM build_log "+
			"WHERE `build_id` = ? ORDER BY (`end_ms` - `start_ms`) DESC, `output` LIMIT ?;",
		&sqlitex.ExecOptions{
			Args: []any{buildID, n},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var hash uint64
				fmt.Sscanf(stmt.ColumnText(2), "%x", &hash)
				ret = append(ret, Entry{
					BuildID:     buildID,
					Output:      stmt.ColumnText(0),
					Kind:        stmt.ColumnText(1),
					CommandHash: hash,
					Start:       time.UnixMilli(stmt.ColumnInt64(3)),
					End:         time.UnixMilli(stmt.ColumnInt64(4)),
					ExitCode:    stmt.ColumnInt(5),
				})
				return nil
			},
		})
	if err != nil {
		return nil, system.Errorf(system.KindFS, "cannot query build log: %v", err)
	}
	return ret, nil
}

// count returns how many entries were recorded for output across all builds.
func (this *BuildLog) count(output string) (int, error) {
	n := 0
	err := sqlitex.ExecuteTransient(this.conn_,
		"SELECT count(*) FROM build_log WHERE `output` = ?;",
		&sqlitex.ExecOptions{
			Args: []any{output},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				n = stmt.ColumnInt(0)
				return nil
			},
		})
	if err != nil {
		return 0, system.Errorf(system.KindFS, "cannot query build log: %v", err)
	}
	return n, nil
}
