package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/growhub/instabulk/internal/domain"
)

// newFakeGraph spins up an httptest server and a Client pointed at it.
func newFakeGraph(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second)
}

func TestAccounts_ResolvesBusinessAccounts(t *testing.T) {
	c := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/accounts":
			fmt.Fprint(w, `{"data":[
				{"id":"p1","name":"Brand One","access_token":"page-tok-1"},
				{"id":"p2","name":"No IG Page","access_token":"page-tok-2"}
			]}`)
		case "/p1":
			if got := r.URL.Query().Get("access_token"); got != "page-tok-1" {
				t.Errorf("page lookup used token %q, want page token", got)
			}
			fmt.Fprint(w, `{"instagram_business_account":{"id":"ig1"}}`)
		case "/p2":
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	accounts, err := c.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 1 || accounts["ig1"] != "Brand One" {
		t.Fatalf("unexpected accounts: %v", accounts)
	}
}

func TestAccounts_EmptyIsNotAnError(t *testing.T) {
	c := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})
	accounts, err := c.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 0 {
		t.Fatalf("expected no accounts, got %v", accounts)
	}
}

func TestCreateContainer_ImageAndVideoParams(t *testing.T) {
	var gotQuery map[string]string
	c := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"media_type": q.Get("media_type"),
			"image_url":  q.Get("image_url"),
			"video_url":  q.Get("video_url"),
			"caption":    q.Get("caption"),
		}
		fmt.Fprint(w, `{"id":"ctr-1"}`)
	})

	id, err := c.CreateContainer(context.Background(), "ig1", "hi", "https://cdn/x.jpg", domain.MediaImage)
	if err != nil || id != "ctr-1" {
		t.Fatalf("image create: id=%q err=%v", id, err)
	}
	if gotQuery["media_type"] != "IMAGE" || gotQuery["image_url"] != "https://cdn/x.jpg" || gotQuery["caption"] != "hi" {
		t.Fatalf("image params: %v", gotQuery)
	}

	if _, err := c.CreateContainer(context.Background(), "ig1", "hi", "https://cdn/x.mp4", domain.MediaVideo); err != nil {
		t.Fatalf("video create: %v", err)
	}
	if gotQuery["media_type"] != "REELS" || gotQuery["video_url"] != "https://cdn/x.mp4" {
		t.Fatalf("video params: %v", gotQuery)
	}
}

func TestCreateContainer_MissingIDIsCreationError(t *testing.T) {
	c := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	_, err := c.CreateContainer(context.Background(), "ig1", "hi", "https://cdn/x.jpg", domain.MediaImage)
	var ce *CreationError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want *CreationError", err)
	}
	if ce.AccountID != "ig1" {
		t.Fatalf("CreationError account = %q", ce.AccountID)
	}
}

func TestCreateContainer_PlatformErrorWrapped(t *testing.T) {
	c := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":100,"type":"OAuthException","message":"invalid media"}}`)
	})
	_, err := c.CreateContainer(context.Background(), "ig1", "hi", "https://cdn/x.jpg", domain.MediaImage)
	var ce *CreationError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want *CreationError", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 100 {
		t.Fatalf("cause not an APIError: %v", err)
	}
}

func TestContainerStatus_Mapping(t *testing.T) {
	cases := []struct {
		code string
		want ContainerState
	}{
		{"FINISHED", StateReady},
		{"READY", StateReady},
		{"IN_PROGRESS", StateProcessing},
		{"ERROR", StateError},
		{"EXPIRED", StateError},
		{"", StateError},
	}
	for _, tc := range cases {
		code := tc.code
		c := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"status_code":%q}`, code)
		})
		got, err := c.ContainerStatus(context.Background(), "ctr-1")
		if err != nil {
			t.Fatalf("status %q: %v", tc.code, err)
		}
		if got != tc.want {
			t.Errorf("status_code %q mapped to %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestPublishContainer_SuccessAndNotReady(t *testing.T) {
	c := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("creation_id") != "ctr-1" {
			t.Errorf("missing creation_id")
		}
		fmt.Fprint(w, `{"id":"post-99"}`)
	})
	id, err := c.PublishContainer(context.Background(), "ig1", "ctr-1")
	if err != nil || id != "post-99" {
		t.Fatalf("publish: id=%q err=%v", id, err)
	}

	notReady := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":9007,"type":"OAuthException","message":"Media not ready"}}`)
	})
	_, err = notReady.PublishContainer(context.Background(), "ig1", "ctr-1")
	var pe *PublishError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *PublishError", err)
	}
	if !IsNotReady(err) {
		t.Fatalf("error code 9007 not detected as retryable: %v", err)
	}

	other := newFakeGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":10,"type":"OAuthException","message":"Permission denied"}}`)
	})
	_, err = other.PublishContainer(context.Background(), "ig1", "ctr-1")
	if IsNotReady(err) {
		t.Fatalf("non-9007 error misclassified as retryable: %v", err)
	}
}
