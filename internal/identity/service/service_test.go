package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	identitymetrics "carp/internal/identity/metrics"
	"carp/internal/identity/models"
	"carp/internal/identity/store"
	id "carp/pkg/domain"
	dErrors "carp/pkg/domain-errors"
	"carp/pkg/platform/sentinel"
	"carp/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	metrics *identitymetrics.Metrics
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.metrics = identitymetrics.New(prometheus.NewRegistry())
	s.service = New(s.store, WithMetrics(s.metrics))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) TestResolve() {
	s.Run("creates a shadow profile on first sight", func() {
		p, err := s.service.Resolve(s.ctx, "S1234567A", "Jane")
		s.Require().NoError(err)
		s.Equal(id.NationalID("S1234567A"), p.NationalID)
		s.Equal("Jane", p.FullName)
		s.True(p.IsShadow())
	})

	s.Run("normalizes input and returns the same participant", func() {
		first, err := s.service.Resolve(s.ctx, "t7654321z", "Jane")
		s.Require().NoError(err)

		second, err := s.service.Resolve(s.ctx, "  T7654321Z ", "Jane Doe")
		s.Require().NoError(err)

		s.Equal(first.ID, second.ID)
		s.Equal("Jane Doe", second.FullName)

		stored, err := s.store.FindByID(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal("Jane Doe", stored.FullName)
	})

	s.Run("never overwrites a real name with a different one", func() {
		first, err := s.service.Resolve(s.ctx, "G1111111B", "Tan Ah Kow")
		s.Require().NoError(err)

		second, err := s.service.Resolve(s.ctx, "G1111111B", "Someone Else Entirely")
		s.Require().NoError(err)

		s.Equal(first.ID, second.ID)
		s.Equal("Tan Ah Kow", second.FullName)
	})

	s.Run("rejects malformed national IDs before touching storage", func() {
		before, err := s.store.Count(s.ctx)
		s.Require().NoError(err)

		for _, raw := range []string{"", "12345", "X1234567A", "S1234567"} {
			_, err := s.service.Resolve(s.ctx, raw, "Jane")
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidIdentity), "input %q", raw)
		}

		after, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after)
	})
}

func (s *ServiceSuite) TestResolve_ConcurrentCallsConverge() {
	const goroutines = 50
	ids := make([]id.ParticipantID, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.service.Resolve(s.ctx, "F2222222C", "Lim")
			errs[i] = err
			if err == nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		s.Require().NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}
	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ParticipantsCreated))
}

// racingStore hides the winner's row from the first lookup, as if another
// transaction committed between the lookup and the insert.
type racingStore struct {
	*store.InMemoryStore
	lookups int
}

func (r *racingStore) FindByNationalID(ctx context.Context, nid id.NationalID) (*models.Participant, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, sentinel.ErrNotFound
	}
	return r.InMemoryStore.FindByNationalID(ctx, nid)
}

func (s *ServiceSuite) TestResolve_LostCreateRaceReturnsWinner() {
	backing := store.NewInMemoryStore()
	winner := models.NewParticipant("M3333333D", "Winner", time.Now())
	s.Require().NoError(backing.Create(s.ctx, winner))

	svc := New(&racingStore{InMemoryStore: backing}, WithMetrics(s.metrics))
	p, err := svc.Resolve(s.ctx, "m3333333d", "Winner Lee")

	s.Require().NoError(err)
	s.Equal(winner.ID, p.ID)
	s.Equal("Winner Lee", p.FullName)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ResolveRaces))
}

type failingStore struct {
	*store.InMemoryStore
}

func (f failingStore) FindByNationalID(context.Context, id.NationalID) (*models.Participant, error) {
	return nil, errors.New("connection refused")
}

func (s *ServiceSuite) TestResolve_StoreFailureIsInternal() {
	svc := New(failingStore{store.NewInMemoryStore()})
	_, err := svc.Resolve(s.ctx, "S1234567A", "Jane")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestGet() {
	p, err := s.service.Resolve(s.ctx, "S1234567A", "Jane")
	s.Require().NoError(err)

	s.Run("found", func() {
		got, err := s.service.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.ID, got.ID)
	})

	s.Run("unknown participant", func() {
		_, err := s.service.Get(s.ctx, id.NewParticipantID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestClaimAccount() {
	account := id.AccountID(uuid.New())

	s.Run("claims a shadow profile", func() {
		shadow, err := s.service.Resolve(s.ctx, "S1234567A", "")
		s.Require().NoError(err)

		claimed, err := s.service.ClaimAccount(s.ctx, account, "s1234567a", "Jane Doe")
		s.Require().NoError(err)
		s.Equal(shadow.ID, claimed.ID)
		s.True(claimed.IsClaimedBy(account))
		s.Equal("Jane Doe", claimed.FullName)

		mine, err := s.service.ParticipantForAccount(s.ctx, account)
		s.Require().NoError(err)
		s.Equal(shadow.ID, mine.ID)
	})

	s.Run("claiming again with the same account is idempotent", func() {
		again, err := s.service.ClaimAccount(s.ctx, account, "S1234567A", "Jane Doe")
		s.Require().NoError(err)
		s.True(again.IsClaimedBy(account))
	})

	s.Run("another account cannot claim the same participant", func() {
		_, err := s.service.ClaimAccount(s.ctx, id.AccountID(uuid.New()), "S1234567A", "Jane Doe")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("an account cannot claim a second participant", func() {
		before, err := s.store.Count(s.ctx)
		s.Require().NoError(err)

		_, err = s.service.ClaimAccount(s.ctx, account, "T7654321Z", "Other Person")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		after, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(before, after, "the failed claim must not leave a new participant behind")
	})

	s.Run("unknown account has no participant", func() {
		_, err := s.service.ParticipantForAccount(s.ctx, id.AccountID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
