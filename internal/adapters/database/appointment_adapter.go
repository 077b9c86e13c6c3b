package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/bookline/videomeet/internal/domain/entities"
	"github.com/bookline/videomeet/internal/domain/repositories"
	"github.com/bookline/videomeet/internal/infrastructure/clients/postgres"
	apperrors "github.com/bookline/videomeet/pkg/errors"
)

var appointmentColumns = []interface{}{
	"id", "business_id", "staff_member_id", "service_id",
	"start_time", "end_time", "timezone", "title", "description",
	"meeting_id", "join_url", "host_url", "meeting_password",
	"meeting_provider", "meeting_status",
	"created_at", "updated_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// ApplyMeetingResult stores the provisioned meeting's details and moves
// meeting_status to created
func (a *AppointmentAdapter) ApplyMeetingResult(ctx context.Context, id string, details *entities.MeetingDetails) error {
	record := goqu.Record{
		"meeting_id":       details.MeetingID,
		"join_url":         details.JoinURL,
		"host_url":         nullableString(details.HostURL),
		"meeting_password": nullableString(details.Password),
		"meeting_provider": details.Provider,
		"meeting_status":   entities.MeetingStatusCreated,
		"updated_at":       time.Now(),
	}

	return a.updateMeetingFields(ctx, id, record, "failed to apply meeting result")
}

// MarkMeetingFailed clears meeting fields and moves meeting_status to failed
func (a *AppointmentAdapter) MarkMeetingFailed(ctx context.Context, id string) error {
	record := blankMeetingRecord()
	record["meeting_status"] = entities.MeetingStatusFailed

	return a.updateMeetingFields(ctx, id, record, "failed to mark meeting failed")
}

// ClearMeetingFields blanks all meeting fields and resets meeting_status
func (a *AppointmentAdapter) ClearMeetingFields(ctx context.Context, id string) error {
	record := blankMeetingRecord()
	record["meeting_status"] = entities.MeetingStatusNotCreated

	return a.updateMeetingFields(ctx, id, record, "failed to clear meeting fields")
}

// ListByStaffMember retrieves appointments assigned to a staff member
func (a *AppointmentAdapter) ListByStaffMember(ctx context.Context, staffMemberID string, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).
		From("appointments").
		Where(goqu.Ex{"staff_member_id": staffMemberID})

	if filter.MeetingStatus != "" {
		ds = ds.Where(goqu.Ex{"meeting_status": filter.MeetingStatus})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("start_time").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("start_time").Lte(*filter.To))
	}

	ds = ds.Order(goqu.I("start_time").Desc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}

	return appointments, nil
}

func (a *AppointmentAdapter) updateMeetingFields(ctx context.Context, id string, record goqu.Record, failMsg string) error {
	query, args, err := a.db.Update("appointments").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError(failMsg, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}

	return nil
}

func blankMeetingRecord() goqu.Record {
	return goqu.Record{
		"meeting_id":       nil,
		"join_url":         nil,
		"host_url":         nil,
		"meeting_password": nil,
		"meeting_provider": entities.MeetingProviderNone,
		"updated_at":       time.Now(),
	}
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var staffMemberID, meetingID, joinURL, hostURL, meetingPassword sql.NullString

	err := row.Scan(
		&appointment.ID,
		&appointment.BusinessID,
		&staffMemberID,
		&appointment.ServiceID,
		&appointment.StartTime,
		&appointment.EndTime,
		&appointment.Timezone,
		&appointment.Title,
		&appointment.Description,
		&meetingID,
		&joinURL,
		&hostURL,
		&meetingPassword,
		&appointment.MeetingProvider,
		&appointment.MeetingStatus,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if staffMemberID.Valid {
		appointment.StaffMemberID = &staffMemberID.String
	}
	if meetingID.Valid {
		appointment.MeetingID = &meetingID.String
	}
	if joinURL.Valid {
		appointment.JoinURL = &joinURL.String
	}
	if hostURL.Valid {
		appointment.HostURL = &hostURL.String
	}
	if meetingPassword.Valid {
		appointment.MeetingPassword = &meetingPassword.String
	}

	return appointment, nil
}
