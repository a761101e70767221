package screens

import (
	"context"
	"sync"

	"reboot-miniapp/internal/identity"
	"reboot-miniapp/internal/models"
)

func hostSnapshot(id int64) identity.Snapshot {
	return identity.NewSnapshot(true, &models.Identity{ID: id, FirstName: "Abebe", Username: "abebe"}, "query_id=1")
}

func standaloneSnapshot() identity.Snapshot {
	return identity.NewSnapshot(false, nil, "")
}

// fakeAPI answers every client call from its fields. A non-nil gate channel
// blocks calls until it is closed or the context ends.
type fakeAPI struct {
	mu sync.Mutex

	user    *models.User
	userErr error

	registered *models.User
	regErr     error
	records    []models.RegistrationRecord

	updateErr error
	updates   map[string]models.RegistrationRecord

	events    []models.Event
	eventsErr error
	signupErr error
	signups   []string

	pages     map[int]*models.MemoryPage
	pageErr   error
	pageCalls []int

	ticket    *models.TicketVerification
	ticketErr error

	gate chan struct{}
}

func (f *fakeAPI) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAPI) GetUserByTelegramID(ctx context.Context, tgID int64) (*models.User, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.userErr
}

func (f *fakeAPI) RegisterUser(ctx context.Context, rec models.RegistrationRecord) (*models.User, error) {
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.regErr != nil {
		return nil, f.regErr
	}
	return f.registered, nil
}

func (f *fakeAPI) UpdateUser(ctx context.Context, id string, rec models.RegistrationRecord) (*models.User, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updates == nil {
		f.updates = map[string]models.RegistrationRecord{}
	}
	f.updates[id] = rec
	return &models.User{MongoID: id, FullName: rec.FullName, Email: rec.Email, PhoneNumber: rec.PhoneNumber,
		Age: rec.Age, Weight: rec.Weight, Height: rec.Height, HorseRidingExperience: rec.HorseRidingExperience}, nil
}

func (f *fakeAPI) ListEvents(ctx context.Context) ([]models.Event, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.events, f.eventsErr
}

func (f *fakeAPI) SignupForEvent(ctx context.Context, eventID, userID string) (*models.EventSignup, error) {
	f.mu.Lock()
	f.signups = append(f.signups, eventID+"/"+userID)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &models.EventSignup{EventID: eventID, UserID: userID}, nil
}

func (f *fakeAPI) ListPublicMemories(ctx context.Context, page, limit int) (*models.MemoryPage, error) {
	f.mu.Lock()
	f.pageCalls = append(f.pageCalls, page)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return f.pages[page], nil
}

func (f *fakeAPI) GetTicket(ctx context.Context, reference string) (*models.TicketVerification, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.ticket, f.ticketErr
}
