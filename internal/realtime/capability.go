package realtime

import (
	"context"

	"github.com/cuckooeats/backoffice/internal/enum"
)

// Permission mirrors the browser notification permission states.
type Permission string

const (
	PermissionDefault Permission = enum.PermissionDefault
	PermissionGranted Permission = enum.PermissionGranted
	PermissionDenied  Permission = enum.PermissionDenied
)

// Notifier posts user-visible notifications on the staff device.
type Notifier interface {
	Permission(ctx context.Context) Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Notify(ctx context.Context, title, body string) error
}

// SoundPlayer plays the new-order alert.
type SoundPlayer interface {
	Play(ctx context.Context) error
}

// NopNotifier stands in where notifications are unsupported.
type NopNotifier struct{}

func (NopNotifier) Permission(context.Context) Permission { return PermissionDenied }

func (NopNotifier) RequestPermission(context.Context) (Permission, error) {
	return PermissionDenied, nil
}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }

type NopSound struct{}

func (NopSound) Play(context.Context) error { return nil }
