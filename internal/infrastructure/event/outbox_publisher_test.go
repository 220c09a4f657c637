package event

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mfi/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOutboxPublisher_PublishWithTx(t *testing.T) {
	newPublisher := func() *OutboxPublisher {
		serializer := NewEventSerializer()
		serializer.Register("loan.approved", &stubEvent{})
		return NewOutboxPublisher(serializer)
	}

	t.Run("writes entries inside the caller's transaction", func(t *testing.T) {
		db, mock := setupMockDB(t)
		publisher := newPublisher()
		evt := newStubEvent("loan.approved")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(evt.OccurredAt(), evt.OccurredAt()))
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return publisher.PublishWithTx(context.Background(), tx, evt)
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("batches several events into one insert", func(t *testing.T) {
		db, mock := setupMockDB(t)
		publisher := newPublisher()
		events := []shared.DomainEvent{
			newStubEvent("loan.approved"),
			newStubEvent("loan.approved"),
			newStubEvent("loan.approved"),
		}

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(events[0].OccurredAt(), events[0].OccurredAt()).
				AddRow(events[1].OccurredAt(), events[1].OccurredAt()).
				AddRow(events[2].OccurredAt(), events[2].OccurredAt()))
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return publisher.PublishWithTx(context.Background(), tx, events...)
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no events means no insert", func(t *testing.T) {
		db, mock := setupMockDB(t)
		publisher := NewOutboxPublisher(NewEventSerializer())

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return publisher.PublishWithTx(context.Background(), tx)
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("entries roll back with the aggregate", func(t *testing.T) {
		db, mock := setupMockDB(t)
		publisher := newPublisher()
		evt := newStubEvent("loan.approved")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "outbox_events"`)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(evt.OccurredAt(), evt.OccurredAt()))
		mock.ExpectRollback()

		aggregateErr := errors.New("aggregate save failed")
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := publisher.PublishWithTx(context.Background(), tx, evt); err != nil {
				return err
			}
			return aggregateErr
		})

		assert.ErrorIs(t, err, aggregateErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxPublisher_SaveEvents(t *testing.T) {
	publisher := NewOutboxPublisher(NewEventSerializer())

	t.Run("rejects a non-gorm transaction provider", func(t *testing.T) {
		err := publisher.SaveEvents(context.Background(), "not a tx", newStubEvent("loan.approved"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be a *gorm.DB")
	})

	t.Run("no events ignores the provider entirely", func(t *testing.T) {
		require.NoError(t, publisher.SaveEvents(context.Background(), nil))
	})
}
