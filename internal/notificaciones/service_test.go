package notificaciones

import (
	"context"
	"errors"
	"testing"
)

type fakeDue []DueDocument

func (f fakeDue) DueForReminder(context.Context, int) ([]DueDocument, error) { return f, nil }

type fakeMembers map[int64][]int64

func (f fakeMembers) ActiveUserIDs(_ context.Context, unidadID int64) ([]int64, error) {
	return f[unidadID], nil
}

func TestSweepDeadlinesSkipsExistingUnread(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	due := fakeDue{
		{HojaID: 1, CreadorID: 10, NumeroHR: "HR-1", Dias: 2},
		{HojaID: 2, CreadorID: 10, NumeroHR: "HR-2", Dias: -1},
		{HojaID: 3, CreadorID: 0, NumeroHR: "HR-3", Dias: 1},
	}
	svc := NewService(repo, due, nil)

	n, err := svc.SweepDeadlines(ctx, 3)
	if err != nil {
		t.Fatalf("SweepDeadlines: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 reminders, got %d", n)
	}
	again, err := svc.SweepDeadlines(ctx, 3)
	if err != nil || again != 0 {
		t.Fatalf("second sweep should create none, got %d (%v)", again, err)
	}

	if _, err := svc.MarkAllRead(ctx, 10); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	third, _ := svc.SweepDeadlines(ctx, 3)
	if third != 2 {
		t.Fatalf("expected reminders after reading, got %d", third)
	}
}

func TestNotifyUnitFansOut(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	svc := NewService(repo, nil, fakeMembers{4: {21, 22}})

	n, err := svc.NotifyUnit(ctx, 4, 9, TipoEnvioRecibido, "Nuevo envío")
	if err != nil || n != 2 {
		t.Fatalf("NotifyUnit: %d %v", n, err)
	}
	count, _ := svc.CountUnread(ctx, 22)
	if count != 1 {
		t.Fatalf("expected 1 unread for user 22, got %d", count)
	}
}

func TestMarkReadOnlyOwnNotification(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepo(), nil, nil)
	n, err := svc.Create(ctx, CreateInput{UsuarioID: 5, Mensaje: "Revisar HR-9"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.Tipo != TipoManual {
		t.Fatalf("expected manual type, got %s", n.Tipo)
	}
	if err := svc.MarkRead(ctx, n.ID, 6); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if err := svc.MarkRead(ctx, n.ID, 5); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	list, _ := svc.List(ctx, 5, true, 10, 0)
	if len(list) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(list))
	}
	if _, err := svc.Create(ctx, CreateInput{UsuarioID: 5}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
