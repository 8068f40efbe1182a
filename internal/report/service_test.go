package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *Service
	store    *MockStore
	notifier *MockNotifier
	pubsub   *pubsub.MockPubSubClient
	metrics  *metrics.Mock
	counters *metrics.MockStore
}

func newFixture() *fixture {
	f := &fixture{
		store:    NewMockStore(),
		notifier: &MockNotifier{},
		pubsub:   pubsub.NewMock(),
		metrics:  metrics.NewMock(),
		counters: metrics.NewMockStore(),
	}
	chars := character.NewMock(character.Character{ID: "c1", UserID: "owner", Name: "Dragon", ImageRef: "gs://b/c1.png"})
	f.svc = NewService(f.store, chars, f.notifier, f.pubsub, f.metrics, f.counters)
	return f
}

func TestFile_Validation(t *testing.T) {
	cases := map[string]Input{
		"bad target type": {TargetType: "planet", TargetID: "x", Reason: "r"},
		"missing id":      {TargetType: TargetCharacter, TargetID: "  ", Reason: "r"},
		"missing reason":  {TargetType: TargetUser, TargetID: "u", Reason: " "},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.File(context.Background(), in, false)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, f.store.Reports)
			assert.Empty(t, f.pubsub.Sent())
		})
	}
}

func TestFile_PersistsEnrichesAndPublishes(t *testing.T) {
	f := newFixture()

	res, err := f.svc.File(context.Background(), Input{
		TargetType: "Character",
		TargetID:   "c1",
		Reason:     strings.Repeat("가", MaxReasonRunes+10),
		Details:    strings.Repeat("d", MaxDetailsRunes+1),
	}, false)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Persisted)
	assert.True(t, strings.HasPrefix(res.ID, "rep-"))

	require.Len(t, f.store.Reports, 1)
	r := f.store.Reports[0]
	assert.Equal(t, TargetCharacter, r.TargetType)
	assert.Equal(t, MaxReasonRunes, len([]rune(r.Reason)))
	assert.Len(t, r.Details, MaxDetailsRunes)
	assert.Equal(t, "Dragon", r.TargetName)
	assert.Equal(t, "owner", r.TargetUserID)
	assert.Equal(t, "gs://b/c1.png", r.TargetImageRef)
	assert.True(t, r.ReporterIsAnonymous)
	assert.Equal(t, StatusPending, r.Status)

	sent := f.pubsub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, pubsub.EventReportFiled, sent[0].Topic)
	assert.Empty(t, f.notifier.Notified(), "push handler notifies when the event is published")

	assert.Equal(t, 1, f.metrics.ReportsFiled(true))
	counters, _ := f.counters.GetAll()
	assert.Equal(t, 1, counters[metrics.KeyReportsFiled])
}

func TestFile_UnknownCharacterStillFiled(t *testing.T) {
	f := newFixture()
	res, err := f.svc.File(context.Background(), Input{TargetType: TargetCharacter, TargetID: "ghost", Reason: "r", ReporterID: "u1"}, false)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Empty(t, f.store.Reports[0].TargetName)
	assert.False(t, f.store.Reports[0].ReporterIsAnonymous)
}

func TestFile_StorageFailureIsSilent(t *testing.T) {
	f := newFixture()
	f.store.InsertFunc = func(context.Context, *Report) error { return errors.New("disk full") }

	res, err := f.svc.File(context.Background(), Input{TargetType: TargetBattle, TargetID: "b1", Reason: "r"}, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Persisted)
	assert.Empty(t, res.ID)
	assert.Equal(t, 1, f.metrics.ReportsFiled(false))
}

func TestFile_NotifiesDirectlyWhenPublishFails(t *testing.T) {
	f := newFixture()
	f.pubsub.SendMessageFunc = func(pubsub.EventType, any) error { return pubsub.ErrDisabled }

	_, err := f.svc.File(context.Background(), Input{TargetType: TargetUser, TargetID: "u2", Reason: "r"}, true)
	require.NoError(t, err)

	notified := f.notifier.Notified()
	require.Len(t, notified, 1)
	assert.Equal(t, "u2", notified[0].TargetID)
}

func TestFile_NotifierFailureIgnored(t *testing.T) {
	f := newFixture()
	f.pubsub.SendMessageFunc = func(pubsub.EventType, any) error { return errors.New("down") }
	f.notifier.Err = errors.New("slack down")

	res, err := f.svc.File(context.Background(), Input{TargetType: TargetUser, TargetID: "u2", Reason: "r"}, false)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
}
