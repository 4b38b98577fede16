package hub

import (
	"context"
	"testing"
)

func TestRegistryRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&TopicHandler{Name: "time"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(&TopicHandler{Name: "time"}); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
	if err := r.Register(&TopicHandler{}); err == nil {
		t.Fatal("expected error for empty name")
	}

	if _, ok := r.Get("time"); !ok {
		t.Fatal("registered handler not found")
	}
	if _, ok := r.Get("nope"); ok {
		t.Fatal("unregistered handler found")
	}
}

func TestRegistrySetupAndTeardownOrder(t *testing.T) {
	r := NewRegistry()

	var order []string
	add := func(name string) {
		err := r.Register(&TopicHandler{
			Name: name,
			Setup: func(ctx context.Context, h *Hub) (func(), error) {
				order = append(order, "setup:"+name)
				return func() { order = append(order, "teardown:"+name) }, nil
			},
		})
		if err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	add("a")
	add("b")

	r.Setup(context.Background(), nil)
	r.Teardown()
	// Teardown must run exactly once even when called again.
	r.Teardown()

	want := []string{"setup:a", "setup:b", "teardown:b", "teardown:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRegistrySetupContinuesPastFailure(t *testing.T) {
	r := NewRegistry()

	ran := false
	r.Register(&TopicHandler{
		Name: "bad",
		Setup: func(ctx context.Context, h *Hub) (func(), error) {
			return nil, context.DeadlineExceeded
		},
	})
	r.Register(&TopicHandler{
		Name: "good",
		Setup: func(ctx context.Context, h *Hub) (func(), error) {
			ran = true
			return nil, nil
		},
	})

	r.Setup(context.Background(), nil)
	if !ran {
		t.Fatal("later setup should still run after an earlier failure")
	}
}
