package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/logger"
)

func TestCreateConfigAndKeywords(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTrackingService(env.tracking, logger.GetDefault())
	ctx := context.Background()

	cfg, err := svc.CreateConfig(ctx, "acct-2", &domain.TrackingConfig{
		BusinessName: "Ace Plumbing",
		GridSize:     5,
		CenterLat:    34.05,
		CenterLng:    -118.24,
		RadiusMiles:  8,
	})
	if err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	if cfg.ID == "" {
		t.Error("config ID should be assigned")
	}
	if cfg.AccountID != "acct-2" {
		t.Errorf("account_id = %s, want acct-2", cfg.AccountID)
	}

	kw, err := svc.AddKeyword(ctx, "acct-2", cfg.ID, "plumber near me")
	if err != nil {
		t.Fatalf("AddKeyword: %v", err)
	}
	if kw.ConfigID != cfg.ID {
		t.Errorf("keyword config_id = %s, want %s", kw.ConfigID, cfg.ID)
	}

	keywords, err := svc.ListKeywords(ctx, "acct-2", cfg.ID)
	if err != nil {
		t.Fatalf("ListKeywords: %v", err)
	}
	if len(keywords) != 1 || keywords[0].Phrase != "plumber near me" {
		t.Errorf("keywords = %+v, want one entry", keywords)
	}
}

func TestCreateConfigRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTrackingService(env.tracking, logger.GetDefault())

	_, err := svc.CreateConfig(context.Background(), "acct-2", &domain.TrackingConfig{
		BusinessName: "Ace Plumbing",
		GridSize:     20,
		RadiusMiles:  8,
	})
	if err == nil {
		t.Fatal("expected validation error for oversized grid")
	}
}

func TestTrackingOwnershipScoping(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTrackingService(env.tracking, logger.GetDefault())
	ctx := context.Background()

	// cfg-1 is seeded for acct-1; acct-2 must not see it.
	if _, err := svc.GetConfig(ctx, "acct-2", "cfg-1"); !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("foreign GetConfig should return ErrConfigNotFound, got %v", err)
	}
	if _, err := svc.AddKeyword(ctx, "acct-2", "cfg-1", "sneaky keyword"); !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("foreign AddKeyword should return ErrConfigNotFound, got %v", err)
	}
}
