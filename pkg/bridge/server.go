package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kataras/figma-assets/pkg/assets"
	"github.com/sirupsen/logrus"
)

// Server is the storage side of the bridge. It answers MAIN_WORLD requests
// from the upload config store and the saved asset repository.
type Server struct {
	ch      Channel
	configs *assets.ConfigStore
	repo    *assets.Repository
	log     *logrus.Entry

	// OnChange, when set, is called after every successful save or delete.
	OnChange func()
}

// NewServer returns a server answering on ch.
func NewServer(ch Channel, configs *assets.ConfigStore, repo *assets.Repository) *Server {
	return &Server{
		ch:      ch,
		configs: configs,
		repo:    repo,
		log:     logrus.WithField("component", "BridgeServer"),
	}
}

// Run serves requests until ctx is done or the channel is closed.
// Requests are handled one at a time in arrival order.
func (s *Server) Run(ctx context.Context) error {
	sub, err := s.ch.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	s.log.Info("Bridge server listening")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-sub.C():
			if !ok {
				return nil
			}
			reply, handled := s.Handle(ctx, env)
			if !handled {
				continue
			}
			if err := s.ch.Publish(ctx, reply); err != nil {
				s.log.WithError(err).WithField("type", env.Type).Warn("Failed to publish reply")
			}
		}
	}
}

// Handle performs the request in env and returns the reply. Envelopes not
// sent by MAIN_WORLD or of an unknown type are ignored.
func (s *Server) Handle(ctx context.Context, env Envelope) (Envelope, bool) {
	if env.Source != SourceMainWorld || !env.Type.Known() {
		return Envelope{}, false
	}

	reply := Envelope{Source: SourceIsolated, Type: env.Type, ID: env.ID}
	log := s.log.WithFields(logrus.Fields{"type": env.Type, "id": env.ID})

	var (
		result any
		err    error
	)

	switch env.Type {
	case TypeGetUploadConfig:
		result, err = s.configs.Load(ctx)
	case TypeGetSavedAssets:
		result, err = s.repo.List(ctx)
	case TypeSaveAsset:
		err = s.saveAsset(ctx, env.Payload)
		result = mutationResult(err)
	case TypeDeleteAsset:
		err = s.deleteAsset(ctx, env.Payload)
		result = mutationResult(err)
	}

	if err != nil {
		log.WithError(err).Warn("Bridge request failed")
		reply.Error = err.Error()
	} else {
		log.Debug("Bridge request served")
	}

	if result != nil {
		raw, mErr := json.Marshal(result)
		if mErr != nil {
			reply.Error = mErr.Error()
		} else {
			reply.Result = raw
		}
	}

	return reply, true
}

func (s *Server) saveAsset(ctx context.Context, payload json.RawMessage) error {
	var a assets.Asset
	if err := json.Unmarshal(payload, &a); err != nil {
		return fmt.Errorf("decode asset: %w", err)
	}
	if _, err := s.repo.Save(ctx, a); err != nil {
		return err
	}
	s.changed()
	return nil
}

func (s *Server) deleteAsset(ctx context.Context, payload json.RawMessage) error {
	var id string
	if err := json.Unmarshal(payload, &id); err != nil {
		return fmt.Errorf("decode asset id: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed()
	return nil
}

func (s *Server) changed() {
	if s.OnChange != nil {
		s.OnChange()
	}
}

func mutationResult(err error) MutationResult {
	if err != nil {
		return MutationResult{Success: false, Error: err.Error()}
	}
	return MutationResult{Success: true}
}
