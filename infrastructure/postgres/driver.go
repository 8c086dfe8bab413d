package postgres

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
	"uerp-backend/pkg/strcase"
)

// Config selects the writer and reader endpoints. Reads go to the
// reader, DDL and writes to the writer; both may point at one host.
type Config struct {
	WriterHostname string
	WriterHostport int
	ReaderHostname string
	ReaderHostport int
	Username       string
	Password       string
	Database       string
	SSLMode        string
}

func (c Config) dsn(host string, port int) string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, host, port, c.Database, sslmode)
}

// Driver is the durable tier.
type Driver struct {
	logger *zap.Logger
	cfg    Config

	writer *sqlx.DB
	reader *sqlx.DB

	closed     atomic.Bool
	reconnects singleflight.Group
}

// New builds an unconnected driver.
func New(logger *zap.Logger, cfg Config) *Driver {
	return &Driver{logger: logger, cfg: cfg}
}

// Connect opens and verifies both pools.
func (d *Driver) Connect(ctx context.Context) error {
	writer, err := sqlx.ConnectContext(ctx, "pgx", d.cfg.dsn(d.cfg.WriterHostname, d.cfg.WriterHostport))
	if err != nil {
		return fmt.Errorf("connect postgres writer: %w", err)
	}
	reader, err := sqlx.ConnectContext(ctx, "pgx", d.cfg.dsn(d.cfg.ReaderHostname, d.cfg.ReaderHostport))
	if err != nil {
		writer.Close()
		return fmt.Errorf("connect postgres reader: %w", err)
	}
	d.writer = writer
	d.reader = reader
	return nil
}

// Disconnect closes both pools for good; a reconnect loop still
// running gives up on its next attempt.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.closed.Store(true)
	return d.closePools()
}

func (d *Driver) closePools() error {
	var errs []error
	if d.writer != nil {
		errs = append(errs, d.writer.Close())
		d.writer = nil
	}
	if d.reader != nil {
		errs = append(errs, d.reader.Close())
		d.reader = nil
	}
	return errors.Join(errs...)
}

// Reconnect schedules a background reconnect. Concurrent callers share
// one attempt; everyone keeps seeing the original error until the new
// pools are up. The loop stops once the driver is disconnected.
func (d *Driver) Reconnect(ctx context.Context) error {
	go d.reconnects.Do("reconnect", func() (any, error) {
		for attempt := 1; ; attempt++ {
			time.Sleep(time.Second)
			if d.closed.Load() {
				return nil, nil
			}
			d.closePools()
			if err := d.Connect(context.Background()); err != nil {
				d.logger.Warn("postgres reconnect failed",
					zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			d.logger.Info("postgres reconnected", zap.Int("attempt", attempt))
			return nil, nil
		}
	})
	return nil
}

// fail hands the error back, scheduling a reconnect only when the
// failure is connection-class. Statement errors leave the pools alone.
func (d *Driver) fail(ctx context.Context, err error) error {
	if isConnectionError(err) {
		d.Reconnect(ctx)
	}
	return err
}

// isConnectionError reports whether the error means the link to the
// server is gone, as opposed to the server rejecting the statement.
func isConnectionError(err error) bool {
	if errors.Is(err, sqldriver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exceptions, 57P admin shutdown.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// RegisterModel derives the schema's column layout and provisions its
// table.
func (d *Driver) RegisterModel(ctx context.Context, info *schema.Info) error {
	state, err := buildTable(info)
	if err != nil {
		return fmt.Errorf("build table for %s: %w", info.SRef, err)
	}
	if _, err := d.writer.ExecContext(ctx, state.createDDL()); err != nil {
		return fmt.Errorf("create table %s: %w", state.table, err)
	}
	info.Database.State = state
	return nil
}

func (d *Driver) state(info *schema.Info) (*tableState, error) {
	s, ok := info.Database.State.(*tableState)
	if !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("schema %q is not registered at the database tier", info.SRef))
	}
	return s, nil
}

// Read fetches one live row by id; soft-deleted rows are misses.
func (d *Driver) Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error) {
	s, err := d.state(info)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id=$1 AND deleted=FALSE LIMIT 1",
		strings.Join(s.columnNames(), ","), s.table)

	row := d.reader.QueryRowxContext(ctx, query, id)
	raw, err := row.SliceScan()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, d.fail(ctx, err)
	}
	return s.scanDocument(s.columns, raw)
}

// Search runs the query descriptor against the schema's table. Only
// live rows are visible.
func (d *Driver) Search(ctx context.Context, info *schema.Info, query *schema.Query) ([]schema.Document, error) {
	s, err := d.state(info)
	if err != nil {
		return nil, err
	}

	selected := s.columns
	columnList := strings.Join(s.columnNames(), ",")
	if projection := query.Projection(); projection != nil {
		selected = make([]column, 0, len(projection))
		names := make([]string, 0, len(projection))
		for _, field := range projection {
			outer := strings.SplitN(field, ".", 2)[0]
			col, ok := s.byName[strcase.Snake(outer)]
			if !ok {
				return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown field %q", field))
			}
			selected = append(selected, col)
			names = append(names, col.name)
		}
		columnList = strings.Join(names, ",")
	}

	condition, err := s.whereClause(query.Filter)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE deleted=FALSE", columnList, s.table)
	if condition != "" {
		b.WriteString(" AND (" + condition + ")")
	}
	if query.OrderBy != "" {
		col, ok := s.byName[strcase.Snake(query.OrderBy)]
		if !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown field %q", query.OrderBy))
		}
		order := "DESC"
		if strings.EqualFold(query.Order, "asc") {
			order = "ASC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", col.name, order)
	}
	if query.Size > 0 {
		fmt.Fprintf(&b, " LIMIT %d", query.Size)
	}
	if query.Skip > 0 {
		fmt.Fprintf(&b, " OFFSET %d", query.Skip)
	}

	rows, err := d.reader.QueryxContext(ctx, b.String())
	if err != nil {
		return nil, d.fail(ctx, err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		raw, err := rows.SliceScan()
		if err != nil {
			return nil, d.fail(ctx, err)
		}
		doc, err := s.scanDocument(selected, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, d.fail(ctx, err)
	}
	return docs, nil
}

// Count counts the live rows matching the query's filter.
func (d *Driver) Count(ctx context.Context, info *schema.Info, query *schema.Query) (int64, error) {
	s, err := d.state(info)
	if err != nil {
		return 0, err
	}
	condition, err := s.whereClause(query.Filter)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE deleted=FALSE", s.table)
	if condition != "" {
		stmt += " AND (" + condition + ")"
	}

	var count int64
	if err := d.reader.GetContext(ctx, &count, stmt); err != nil {
		return 0, d.fail(ctx, err)
	}
	return count, nil
}

// Create inserts the documents. A duplicate id is a conflict.
func (d *Driver) Create(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	s, err := d.state(info)
	if err != nil {
		return err
	}

	placeholders := make([]string, len(s.columns))
	for n := range s.columns {
		placeholders[n] = fmt.Sprintf("$%d", n+1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(s.columnNames(), ","), strings.Join(placeholders, ","))

	for _, doc := range docs {
		args, err := s.arguments(doc)
		if err != nil {
			return err
		}
		if _, err := d.writer.ExecContext(ctx, stmt, args...); err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewConflict(fmt.Sprintf("duplicate id %s", schema.DocumentString(doc, "id")))
			}
			return d.fail(ctx, err)
		}
	}
	return nil
}

// Update rewrites live rows. A missing or soft-deleted target is a
// conflict, since the primary refused the write.
func (d *Driver) Update(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	s, err := d.state(info)
	if err != nil {
		return err
	}

	assignments := make([]string, len(s.columns))
	for n, col := range s.columns {
		assignments[n] = fmt.Sprintf("%s=$%d", col.name, n+1)
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id=$%d AND deleted=FALSE",
		s.table, strings.Join(assignments, ","), len(s.columns)+1)

	for _, doc := range docs {
		id := schema.DocumentString(doc, "id")
		if id == "" {
			return apperrors.NewBadRequest("document has no id")
		}
		args, err := s.arguments(doc)
		if err != nil {
			return err
		}
		result, err := d.writer.ExecContext(ctx, stmt, append(args, id)...)
		if err != nil {
			return d.fail(ctx, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return d.fail(ctx, err)
		}
		if affected == 0 {
			return apperrors.NewConflict(fmt.Sprintf("row %s is missing or already deleted", id))
		}
	}
	return nil
}

// Delete removes a row physically, deleted or not.
func (d *Driver) Delete(ctx context.Context, info *schema.Info, id string) error {
	s, err := d.state(info)
	if err != nil {
		return err
	}
	result, err := d.writer.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id=$1", s.table), id)
	if err != nil {
		return d.fail(ctx, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return d.fail(ctx, err)
	}
	if affected == 0 {
		return apperrors.NewNotFound(fmt.Sprintf("row %s not found", id))
	}
	return nil
}

// arguments renders a document's column values in column order.
func (s *tableState) arguments(doc schema.Document) ([]any, error) {
	args := make([]any, 0, len(s.columns))
	for _, col := range s.columns {
		value, err := dump(col.field, doc[col.field.Name])
		if err != nil {
			return nil, apperrors.NewBadRequest(err.Error())
		}
		args = append(args, value)
	}
	return args, nil
}

// scanDocument rebuilds a document from scanned column values.
func (s *tableState) scanDocument(cols []column, raw []any) (schema.Document, error) {
	doc := schema.Document{}
	for n, col := range cols {
		value, err := load(col.field, raw[n])
		if err != nil {
			return nil, err
		}
		doc[col.field.Name] = value
	}
	return doc, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
