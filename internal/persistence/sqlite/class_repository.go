package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/class-scheduler/internal/persistence"
)

// ClassRepository implements persistence.ClassRepository using SQLite.
type ClassRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewClassRepository creates a new SQLite class repository.
func NewClassRepository(pool *ConnectionPool) *ClassRepository {
	return &ClassRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const classColumns = `id, title, description, instructor_id, room_id, kind, series_start, series_end,
	interval_unit, weekdays, month_days, manual_dates, time_slots, created_at, updated_at`

// CreateClass inserts a class together with its sessions and exceptions.
func (r *ClassRepository) CreateClass(ctx context.Context, class persistence.Class) error {
	if class.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.insertClassRow(tx, class); err != nil {
			return err
		}
		if err := r.insertSessions(tx, class.ID, class.Sessions); err != nil {
			return err
		}
		return r.insertExceptions(tx, class.ID, class.Exceptions)
	})
}

// UpdateClass replaces a class row along with its session list and exception
// history. The reconciled expansion is the authoritative state, so child rows
// are rewritten wholesale.
func (r *ClassRepository) UpdateClass(ctx context.Context, class persistence.Class) error {
	if class.ID == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		slots, err := encodeTimeSlots(class.Recurrence.TimeSlots)
		if err != nil {
			return err
		}

		result, err := r.helper.ExecTx(tx, `
			UPDATE classes
			SET title = ?, description = ?, instructor_id = ?, room_id = ?, kind = ?,
				series_start = ?, series_end = ?, interval_unit = ?, weekdays = ?,
				month_days = ?, manual_dates = ?, time_slots = ?, updated_at = ?
			WHERE id = ?`,
			class.Title,
			class.Description,
			class.InstructorID,
			class.RoomID,
			class.Recurrence.Kind,
			formatTime(class.Recurrence.SeriesStart),
			nullableTime(class.Recurrence.SeriesEnd),
			class.Recurrence.IntervalUnit,
			joinInts(class.Recurrence.Weekdays),
			joinInts(class.Recurrence.MonthDays),
			strings.Join(class.Recurrence.ManualDates, ","),
			slots,
			formatTime(class.UpdatedAt),
			class.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		if _, err := r.helper.ExecTx(tx, "DELETE FROM class_sessions WHERE class_id = ?", class.ID); err != nil {
			return r.mapper.MapError(err)
		}
		if _, err := r.helper.ExecTx(tx, "DELETE FROM class_exceptions WHERE class_id = ?", class.ID); err != nil {
			return r.mapper.MapError(err)
		}
		if err := r.insertSessions(tx, class.ID, class.Sessions); err != nil {
			return err
		}
		return r.insertExceptions(tx, class.ID, class.Exceptions)
	})
}

// GetClass retrieves a class by id, including sessions and exceptions.
func (r *ClassRepository) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	if id == "" {
		return persistence.Class{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, "SELECT "+classColumns+" FROM classes WHERE id = ?", id)
	class, err := scanClass(row)
	if err != nil {
		return persistence.Class{}, r.mapper.MapError(err)
	}

	if class.Sessions, err = r.loadSessions(ctx, id); err != nil {
		return persistence.Class{}, err
	}
	if class.Exceptions, err = r.loadExceptions(ctx, id); err != nil {
		return persistence.Class{}, err
	}
	return class, nil
}

// ListClasses lists classes matching the filter, ordered by series start.
func (r *ClassRepository) ListClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.Class, error) {
	query := "SELECT " + classColumns + " FROM classes"
	var conditions []string
	var args []any

	if filter.InstructorID != "" {
		conditions = append(conditions, "instructor_id = ?")
		args = append(args, filter.InstructorID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM class_sessions s WHERE s.class_id = classes.id AND s.end_time > ?)")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM class_sessions s WHERE s.class_id = classes.id AND s.start_time < ?)")
		args = append(args, formatTime(*filter.EndsBefore))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY series_start ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var classes []persistence.Class
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		classes = append(classes, class)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	for i := range classes {
		if classes[i].Sessions, err = r.loadSessions(ctx, classes[i].ID); err != nil {
			return nil, err
		}
		if classes[i].Exceptions, err = r.loadExceptions(ctx, classes[i].ID); err != nil {
			return nil, err
		}
	}
	return classes, nil
}

// DeleteClass removes a class and its child rows.
func (r *ClassRepository) DeleteClass(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(tx, "DELETE FROM class_sessions WHERE class_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}
		if _, err := r.helper.ExecTx(tx, "DELETE FROM class_exceptions WHERE class_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(tx, "DELETE FROM classes WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// FindOverlapping answers the conflict-check query in a single SQL pass over
// the sessions table, then loads each matching class with its entity names.
func (r *ClassRepository) FindOverlapping(ctx context.Context, query persistence.OverlapQuery) ([]persistence.OverlappingClass, error) {
	if len(query.Candidates) == 0 {
		return nil, nil
	}

	var entity []string
	var args []any
	if query.RoomID != "" {
		entity = append(entity, "c.room_id = ?")
		args = append(args, query.RoomID)
	}
	if query.InstructorID != "" {
		entity = append(entity, "c.instructor_id = ?")
		args = append(args, query.InstructorID)
	}
	if len(entity) == 0 {
		return nil, nil
	}

	sqlQuery := `
		SELECT DISTINCT c.id
		FROM classes c
		JOIN class_sessions s ON s.class_id = c.id
		WHERE (` + strings.Join(entity, " OR ") + `)`

	if query.ExcludeClassID != "" {
		sqlQuery += " AND c.id != ?"
		args = append(args, query.ExcludeClassID)
	}

	// Half-open overlap test per candidate: existing starts before the
	// candidate ends and ends after it starts. RFC3339 UTC strings compare
	// lexicographically in time order.
	overlaps := make([]string, 0, len(query.Candidates))
	for _, candidate := range query.Candidates {
		overlaps = append(overlaps, "(s.start_time < ? AND s.end_time > ?)")
		args = append(args, formatTime(candidate.End), formatTime(candidate.Start))
	}
	sqlQuery += " AND (" + strings.Join(overlaps, " OR ") + ") ORDER BY c.series_start ASC, c.id ASC"

	rows, err := r.helper.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.mapper.MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	matches := make([]persistence.OverlappingClass, 0, len(ids))
	for _, id := range ids {
		class, err := r.GetClass(ctx, id)
		if err != nil {
			return nil, err
		}

		match := persistence.OverlappingClass{Class: class}
		err = r.helper.QueryRow(ctx, `
			SELECT i.name, r.name
			FROM classes c
			JOIN instructors i ON i.id = c.instructor_id
			JOIN rooms r ON r.id = c.room_id
			WHERE c.id = ?`, id).Scan(&match.InstructorName, &match.RoomName)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (r *ClassRepository) insertClassRow(tx *sql.Tx, class persistence.Class) error {
	slots, err := encodeTimeSlots(class.Recurrence.TimeSlots)
	if err != nil {
		return err
	}

	_, err = r.helper.ExecTx(tx, `
		INSERT INTO classes (`+classColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		class.ID,
		class.Title,
		class.Description,
		class.InstructorID,
		class.RoomID,
		class.Recurrence.Kind,
		formatTime(class.Recurrence.SeriesStart),
		nullableTime(class.Recurrence.SeriesEnd),
		class.Recurrence.IntervalUnit,
		joinInts(class.Recurrence.Weekdays),
		joinInts(class.Recurrence.MonthDays),
		strings.Join(class.Recurrence.ManualDates, ","),
		slots,
		formatTime(class.CreatedAt),
		formatTime(class.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

func (r *ClassRepository) insertSessions(tx *sql.Tx, classID string, sessions []persistence.Session) error {
	for i, session := range sessions {
		if session.ID == "" {
			return persistence.ErrConstraintViolation
		}
		_, err := r.helper.ExecTx(tx, `
			INSERT INTO class_sessions (id, class_id, start_time, end_time, position)
			VALUES (?, ?, ?, ?, ?)`,
			session.ID, classID, formatTime(session.Start), formatTime(session.End), i,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *ClassRepository) insertExceptions(tx *sql.Tx, classID string, exceptions []persistence.Exception) error {
	for _, exc := range exceptions {
		if exc.ID == "" {
			return persistence.ErrConstraintViolation
		}
		_, err := r.helper.ExecTx(tx, `
			INSERT INTO class_exceptions (id, class_id, anchor, status, reason, new_start, new_end, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			exc.ID, classID, formatTime(exc.Anchor), exc.Status, exc.Reason,
			nullableTime(exc.NewStart), nullableTime(exc.NewEnd), formatTime(exc.CreatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *ClassRepository) loadSessions(ctx context.Context, classID string) ([]persistence.Session, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, class_id, start_time, end_time
		FROM class_sessions
		WHERE class_id = ?
		ORDER BY position ASC`, classID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		var session persistence.Session
		var startStr, endStr string
		if err := rows.Scan(&session.ID, &session.ClassID, &startStr, &endStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if session.Start, err = parseTime(startStr); err != nil {
			return nil, fmt.Errorf("failed to parse start_time: %w", err)
		}
		if session.End, err = parseTime(endStr); err != nil {
			return nil, fmt.Errorf("failed to parse end_time: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *ClassRepository) loadExceptions(ctx context.Context, classID string) ([]persistence.Exception, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, class_id, anchor, status, reason, new_start, new_end, created_at
		FROM class_exceptions
		WHERE class_id = ?
		ORDER BY created_at ASC, id ASC`, classID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var exceptions []persistence.Exception
	for rows.Next() {
		var exc persistence.Exception
		var anchorStr, createdStr string
		var newStart, newEnd sql.NullString
		if err := rows.Scan(&exc.ID, &exc.ClassID, &anchorStr, &exc.Status, &exc.Reason, &newStart, &newEnd, &createdStr); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if exc.Anchor, err = parseTime(anchorStr); err != nil {
			return nil, fmt.Errorf("failed to parse anchor: %w", err)
		}
		if exc.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if exc.NewStart, err = parseNullableTime(newStart); err != nil {
			return nil, fmt.Errorf("failed to parse new_start: %w", err)
		}
		if exc.NewEnd, err = parseNullableTime(newEnd); err != nil {
			return nil, fmt.Errorf("failed to parse new_end: %w", err)
		}
		exceptions = append(exceptions, exc)
	}
	return exceptions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClass(row rowScanner) (persistence.Class, error) {
	var class persistence.Class
	var seriesStartStr, createdStr, updatedStr string
	var seriesEnd sql.NullString
	var weekdays, monthDays, manualDates, slots string

	err := row.Scan(
		&class.ID,
		&class.Title,
		&class.Description,
		&class.InstructorID,
		&class.RoomID,
		&class.Recurrence.Kind,
		&seriesStartStr,
		&seriesEnd,
		&class.Recurrence.IntervalUnit,
		&weekdays,
		&monthDays,
		&manualDates,
		&slots,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		return persistence.Class{}, err
	}

	if class.Recurrence.SeriesStart, err = parseTime(seriesStartStr); err != nil {
		return persistence.Class{}, fmt.Errorf("failed to parse series_start: %w", err)
	}
	seriesEndPtr, err := parseNullableTime(seriesEnd)
	if err != nil {
		return persistence.Class{}, fmt.Errorf("failed to parse series_end: %w", err)
	}
	class.Recurrence.SeriesEnd = seriesEndPtr
	if class.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Class{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if class.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Class{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if class.Recurrence.Weekdays, err = splitInts(weekdays); err != nil {
		return persistence.Class{}, fmt.Errorf("failed to parse weekdays: %w", err)
	}
	if class.Recurrence.MonthDays, err = splitInts(monthDays); err != nil {
		return persistence.Class{}, fmt.Errorf("failed to parse month_days: %w", err)
	}
	if manualDates != "" {
		class.Recurrence.ManualDates = strings.Split(manualDates, ",")
	}
	if err := json.Unmarshal([]byte(slots), &class.Recurrence.TimeSlots); err != nil {
		return persistence.Class{}, fmt.Errorf("failed to parse time_slots: %w", err)
	}
	return class, nil
}

func encodeTimeSlots(slots []persistence.TimeSlot) (string, error) {
	if slots == nil {
		slots = []persistence.TimeSlot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return "", fmt.Errorf("failed to encode time_slots: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func joinInts(values []int) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(value string) ([]int, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
