package sessions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-tokenator/grants"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/jrsteele09/go-tokenator/internal/utils"
	"github.com/jrsteele09/go-tokenator/token/store"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store is the persistence sessions need. Grant revocation goes through the same store.
type Store interface {
	grants.Store
	FindBySessionUID(ctx context.Context, uid string) (store.Payload, bool, error)
}

// Authorization links a session to the grant a client obtained within it.
type Authorization struct {
	GrantID string `json:"grantId"`
	SID     string `json:"sid"`
}

// Session is an end-user login session. It is addressed by ID internally and by UID from
// the browser cookie.
type Session struct {
	ID             string
	UID            string
	AccountID      string
	LoginTS        int64
	ACR            string
	AMR            []string
	Authorizations map[string]Authorization
	TTL            time.Duration
}

func New(accountID string, ttl time.Duration) *Session {
	return &Session{
		ID:             uuid.New().String(),
		UID:            uuid.New().String(),
		AccountID:      accountID,
		LoginTS:        NowTimeFunc().Unix(),
		Authorizations: map[string]Authorization{},
		TTL:            ttl,
	}
}

// Authorize records that clientID holds grantID within this session and returns the sid
// handed out in ID tokens.
func (s *Session) Authorize(clientID, grantID string) string {
	if a, ok := s.Authorizations[clientID]; ok && a.GrantID == grantID {
		return a.SID
	}
	a := Authorization{GrantID: grantID, SID: uuid.New().String()}
	s.Authorizations[clientID] = a
	return a.SID
}

func (s *Session) Payload() store.Payload {
	authorizations := make(map[string]any, len(s.Authorizations))
	for clientID, a := range s.Authorizations {
		authorizations[clientID] = map[string]any{"grantId": a.GrantID, "sid": a.SID}
	}
	p := store.Payload{
		store.FieldJTI:   s.ID,
		store.FieldKind:  string(store.Session),
		store.FieldUID:   s.UID,
		"accountId":      s.AccountID,
		"loginTs":        s.LoginTS,
		"authorizations": authorizations,
	}
	if s.ACR != "" {
		p["acr"] = s.ACR
	}
	if len(s.AMR) > 0 {
		p["amr"] = s.AMR
	}
	if s.TTL > 0 {
		p[store.FieldExpires] = NowTimeFunc().Add(s.TTL).Unix()
	}
	return p
}

// Save persists the session together with its uid lookup.
func (s *Session) Save(ctx context.Context, st Store) error {
	if err := st.Upsert(ctx, store.Session, s.ID, s.Payload(), s.TTL); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// FindByUID loads the session behind a browser uid. A missing session is errs.ErrNotFound.
func FindByUID(ctx context.Context, st Store, uid string) (*Session, error) {
	payload, found, err := st.FindBySessionUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Wrapf(errs.ErrNotFound, "session uid %s", uid)
	}
	return fromPayload(payload), nil
}

// Logout revokes every grant authorized in the session and then removes the session.
// Logging out of a session that no longer exists is not an error.
func Logout(ctx context.Context, st Store, uid string) error {
	session, err := FindByUID(ctx, st, uid)
	if errs.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	clientIDs := make([]string, 0, len(session.Authorizations))
	for clientID := range session.Authorizations {
		clientIDs = append(clientIDs, clientID)
	}
	sort.Strings(clientIDs)
	for _, clientID := range clientIDs {
		grantID := session.Authorizations[clientID].GrantID
		if grantID == "" {
			continue
		}
		if err := grants.Revoke(ctx, st, grantID); err != nil {
			return fmt.Errorf("failed to revoke grant for client %s: %w", clientID, err)
		}
		log.Debug().Str("client_id", clientID).Str("grant_id", grantID).Msg("grant revoked on logout")
	}
	return st.Destroy(ctx, store.Session, session.ID)
}

func fromPayload(p store.Payload) *Session {
	s := &Session{
		ID:             p.String(store.FieldJTI),
		UID:            p.UID(),
		AccountID:      p.String("accountId"),
		ACR:            p.String("acr"),
		Authorizations: map[string]Authorization{},
	}
	s.LoginTS, _ = p.Int64("loginTs")
	s.AMR = utils.ToStringSlice(p["amr"])
	if authorizations, ok := p["authorizations"].(map[string]any); ok {
		for clientID, v := range authorizations {
			a, _ := v.(map[string]any)
			grantID, _ := a["grantId"].(string)
			sid, _ := a["sid"].(string)
			s.Authorizations[clientID] = Authorization{GrantID: grantID, SID: sid}
		}
	}
	if exp, ok := p.ExpiresAt(); ok {
		s.TTL = exp.Sub(NowTimeFunc())
	}
	return s
}
