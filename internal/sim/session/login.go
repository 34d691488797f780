package session

import (
	"context"
	"errors"

	"mossvale/internal/auth"
	plog "mossvale/internal/persistence/log"
	"mossvale/internal/persistence/repo"
	"mossvale/internal/protocol"
)

// handleLogin accepts only Login and Register; everything else is ignored
// without a reply.
func (s *Session) handleLogin(ctx context.Context, sender *Session, pkt protocol.Packet) {
	switch pkt.Action {
	case protocol.ActionLogin:
		s.login(ctx, pkt.String(0), pkt.String(1))
	case protocol.ActionRegister:
		s.register(ctx, pkt.String(0), pkt.String(1), pkt.Int(2))
	}
}

func (s *Session) login(ctx context.Context, username, password string) {
	if err := s.deps.Identity.Authenticate(ctx, username, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.sendClient(protocol.NewDeny("Invalid username or password"))
			return
		}
		s.deps.Log.Printf("session %d: authenticate %q: %v", s.id, username, err)
		s.sendClient(protocol.NewDeny("Login failed: " + err.Error()))
		return
	}

	user, err := s.deps.Repo.GetOrCreateUser(ctx, username)
	if err != nil {
		s.deps.Log.Printf("session %d: resolve user %q: %v", s.id, username, err)
		s.sendClient(protocol.NewDeny("Login failed: " + err.Error()))
		return
	}

	actor, err := s.deps.Repo.ActorByUser(ctx, user.ID)
	if errors.Is(err, repo.ErrNotFound) {
		s.sendClient(protocol.NewDeny("No character found for this user"))
		return
	}
	if err != nil {
		s.deps.Log.Printf("session %d: load actor for %q: %v", s.id, username, err)
		s.sendClient(protocol.NewDeny("Login failed: " + err.Error()))
		return
	}

	s.actor = actor
	s.username = username
	s.sendClient(protocol.NewOk())
	s.reg.Broadcast(s, protocol.NewModelDelta(actor.Structured()), false)
	s.state = StatePlay

	worldItems, err := s.deps.Repo.WorldItems(ctx)
	if err != nil {
		s.deps.Log.Printf("session %d: list world items: %v", s.id, err)
	}
	for _, wi := range worldItems {
		s.sendClient(protocol.NewItemSpawn(wi.Structured()))
	}
	s.sendInventory(ctx)
	s.ensureBaselineItems(ctx)

	s.deps.Events.Log(plog.Event{Kind: plog.KindLogin, Username: username, ActorID: actor.ID})
}

// register creates the account and its world records but does not enter
// Play: the client logs in afterwards (two-step signup flow).
func (s *Session) register(ctx context.Context, username, password string, avatarID int64) {
	if err := s.deps.Identity.Register(ctx, username, password); err != nil {
		if errors.Is(err, auth.ErrUsernameExists) {
			s.sendClient(protocol.NewDeny("This username is already taken"))
			return
		}
		s.deps.Log.Printf("session %d: register %q: %v", s.id, username, err)
		s.sendClient(protocol.NewDeny("Registration failed"))
		return
	}

	if err := s.createCharacter(ctx, username, avatarID); err != nil {
		s.deps.Log.Printf("session %d: create character for %q: %v", s.id, username, err)
		s.sendClient(protocol.NewDeny("Registration failed: " + err.Error()))
		return
	}

	s.sendClient(protocol.NewOk())
	s.deps.Events.Log(plog.Event{Kind: plog.KindRegister, Username: username})
}

func (s *Session) createCharacter(ctx context.Context, username string, avatarID int64) error {
	user, err := s.deps.Repo.GetOrCreateUser(ctx, username)
	if err != nil {
		return err
	}
	entity, err := s.deps.Repo.CreateEntity(ctx, username)
	if err != nil {
		return err
	}
	ie, err := s.deps.Repo.CreateInstancedEntity(ctx, entity, 0, 0)
	if err != nil {
		return err
	}
	_, err = s.deps.Repo.CreateActor(ctx, user, ie, avatarID)
	return err
}

// ensureBaselineItems makes the tuned catalog items and their world spawns
// exist. Both steps are existence-gated, so repeated logins and concurrent
// sessions leave at most one live instance per item.
func (s *Session) ensureBaselineItems(ctx context.Context) {
	for _, sp := range s.deps.Tune.ItemSpawns {
		item, _, err := s.deps.Repo.GetOrCreateItem(ctx, sp.Name, sp.Description, sp.ItemType)
		if err != nil {
			s.deps.Log.Printf("session %d: catalog item %q: %v", s.id, sp.Name, err)
			continue
		}
		wi, created, err := s.deps.Repo.SpawnWorldItemIfAbsent(ctx, item, sp.X, sp.Y)
		if err != nil {
			s.deps.Log.Printf("session %d: spawn %q: %v", s.id, sp.Name, err)
			continue
		}
		if created {
			s.reg.Broadcast(s, protocol.NewItemSpawn(wi.Structured()), false)
			s.deps.Events.Log(plog.Event{
				Kind: plog.KindItemSpawn, Item: sp.Name, ItemID: wi.ID, X: sp.X, Y: sp.Y,
			})
		}
	}
}
