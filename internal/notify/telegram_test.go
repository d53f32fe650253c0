package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"dentaldesk/internal/events"
	"dentaldesk/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type MockProviders struct {
	mock.Mock
}

func (m *MockProviders) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Provider), args.Error(1)
}

func appointmentEvent(t *testing.T, eventType string, a models.Appointment) events.Event {
	t.Helper()
	data, err := json.Marshal(a)
	require.NoError(t, err)
	return events.Event{Type: eventType, Payload: data}
}

func messageTo(chatID int64, contains string) any {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, contains)
	})
}

func newNotifier(sender TelegramSender, providers ProviderLookup, chats ...int64) *TelegramNotifier {
	logger := zerolog.Nop()
	return NewTelegramNotifier(sender, chats, providers, &logger)
}

func TestHandleEvent_Booked(t *testing.T) {
	sender := new(MockSender)
	providers := new(MockProviders)
	providers.On("GetProvider", mock.Anything, int64(1)).Return(&models.Provider{ID: 1, Name: "Dr. Rivera"}, nil)
	sender.On("Send", messageTo(100, "Dr. Rivera, 2024-01-02 09:30")).Return(nil).Once()
	sender.On("Send", messageTo(200, "Patient: Ana (555-0101)")).Return(nil).Once()

	n := newNotifier(sender, providers, 100, 200)
	err := n.HandleEvent(context.Background(), appointmentEvent(t, events.AppointmentBooked, models.Appointment{
		ProviderID: 1, Date: "2024-01-02", Time: "09:30", PatientName: "Ana", PatientPhone: "555-0101",
	}))

	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestHandleEvent_CanceledUnknownProvider(t *testing.T) {
	sender := new(MockSender)
	providers := new(MockProviders)
	providers.On("GetProvider", mock.Anything, int64(7)).Return(nil, errors.New("not found"))
	sender.On("Send", messageTo(100, "Appointment canceled\nprovider #7")).Return(nil).Once()

	n := newNotifier(sender, providers, 100)
	err := n.HandleEvent(context.Background(), appointmentEvent(t, events.AppointmentCanceled, models.Appointment{
		ProviderID: 7, Date: "2024-01-02", Time: "10:00",
	}))

	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestHandleEvent_IgnoresOtherEvents(t *testing.T) {
	sender := new(MockSender)
	n := newNotifier(sender, nil, 100)

	require.NoError(t, n.HandleEvent(context.Background(), events.Event{Type: events.AvailabilityUpdated, Payload: []byte(`{}`)}))
	require.NoError(t, n.HandleEvent(context.Background(), appointmentEvent(t, events.AppointmentCompleted, models.Appointment{})))
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestBroadcast_PartialFailure(t *testing.T) {
	sender := new(MockSender)
	sender.On("Send", messageTo(1, "")).Return(errors.New("network down")).Once()
	sender.On("Send", messageTo(2, "")).Return(nil).Once()

	n := newNotifier(sender, nil, 1, 2)
	err := n.Broadcast(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 1")
	assert.NotContains(t, err.Error(), "chat 2")
	sender.AssertExpectations(t)
}

func TestBroadcast_RetriesOnTooManyRequests(t *testing.T) {
	sender := new(MockSender)
	limited := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 0}}
	sender.On("Send", messageTo(1, "")).Return(limited).Once()
	sender.On("Send", messageTo(1, "")).Return(nil).Once()

	n := newNotifier(sender, nil, 1)
	require.NoError(t, n.Broadcast(context.Background(), "hello"))
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestBroadcast_GivesUpAfterRetries(t *testing.T) {
	sender := new(MockSender)
	limited := &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
	sender.On("Send", mock.Anything).Return(limited)

	n := newNotifier(sender, nil, 1)
	err := n.Broadcast(context.Background(), "hello")

	require.Error(t, err)
	sender.AssertNumberOfCalls(t, "Send", n.maxRetries+1)
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.HandleEvent(context.Background(), events.Event{Type: events.AppointmentBooked}))
}
