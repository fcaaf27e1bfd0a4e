package services

import (
	"errors"
	"fmt"
	"time"

	"competition-ledger-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventService owns the event lifecycle surface. Event and session
// definitions arrive from the external scheduling component; this service
// stores them and guards the status transitions that gate enrollment,
// outcome recording and reward distribution.
type EventService struct {
	DB *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// legal status transitions; everything else is rejected
var eventTransitions = map[models.EventStatus][]models.EventStatus{
	models.EventStatusDraft:      {models.EventStatusOpen},
	models.EventStatusOpen:       {models.EventStatusInProgress, models.EventStatusArchived},
	models.EventStatusInProgress: {models.EventStatusCompleted},
	models.EventStatusCompleted:  {models.EventStatusArchived},
}

func transitionAllowed(from, to models.EventStatus) bool {
	for _, next := range eventTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type CreateEventInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OrganizerID string    `json:"organizer_id"`
	Capacity    int       `json:"capacity"`
	Cost        int64     `json:"cost"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

func (s *EventService) CreateEvent(in CreateEventInput) (*models.Event, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("event name is required")
	}

	event := models.Event{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		OrganizerID: in.OrganizerID,
		Capacity:    in.Capacity,
		Cost:        in.Cost,
		Status:      models.EventStatusDraft,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
	}
	event.Slug = slug.Make(in.Name)

	if err := s.DB.Create(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// slug collision: suffix with a short id fragment
			event.Slug = fmt.Sprintf("%s-%s", event.Slug, event.ID[:8])
			if err := s.DB.Create(&event).Error; err != nil {
				return nil, err
			}
			return &event, nil
		}
		return nil, err
	}
	return &event, nil
}

// UpdateStatus applies a guarded status transition. The row lock serializes
// racing transitions; the loser re-reads the committed status and fails the
// guard instead of committing an illegal hop.
func (s *EventService) UpdateStatus(eventID string, to models.EventStatus) (*models.Event, error) {
	var event *models.Event
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var ev models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", eventID).First(&ev).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		if !transitionAllowed(ev.Status, to) {
			return fmt.Errorf("illegal status transition %s -> %s", ev.Status, to)
		}
		if err := tx.Model(&ev).Update("status", to).Error; err != nil {
			return err
		}
		ev.Status = to
		event = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// AddSession ingests a session definition from the scheduling component.
func (s *EventService) AddSession(eventID, name string, capacity int, start, end time.Time) (*models.Session, error) {
	var event models.Event
	if err := s.DB.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	session := models.Session{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Name:      name,
		Capacity:  capacity,
		StartTime: start,
		EndTime:   end,
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// GetEvent returns the event with its sessions and computed slot counts.
func (s *EventService) GetEvent(eventID string) (*models.Event, error) {
	var event models.Event
	if err := s.DB.Preload("Sessions").Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	if err := s.DB.Model(&models.Enrollment{}).
		Where("event_id = ? AND active", event.ID).
		Count(&event.EnrolledCount).Error; err != nil {
		return nil, err
	}
	if event.Capacity > 0 {
		event.AvailableSlots = int64(event.Capacity) - event.EnrolledCount
		if event.AvailableSlots < 0 {
			event.AvailableSlots = 0
		}
	}
	return &event, nil
}

// ListOpenEvents lists enrollable events, soonest first.
func (s *EventService) ListOpenEvents() ([]models.Event, error) {
	var events []models.Event
	err := s.DB.Where("status = ?", models.EventStatusOpen).
		Order("start_time ASC").
		Find(&events).Error
	return events, err
}
