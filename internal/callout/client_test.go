package callout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestPlaceCall_Success(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotURL string
	var gotUser, gotPass string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		r.ParseForm()
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotURL = r.PostForm.Get("Url")

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "CA123"}`))
	}))
	defer server.Close()

	client := New(Config{
		APIBase:    server.URL,
		AccountSID: "AC42",
		AuthToken:  "secret",
		From:       "+15550009999",
		VoiceBase:  "https://ringer.example.com/voice",
	})

	id := uuid.New()
	receipt, err := client.PlaceCall(context.Background(), id, "+15550001122")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.SID != "CA123" {
		t.Errorf("expected sid CA123, got %q", receipt.SID)
	}
	if gotPath != "/2010-04-01/Accounts/AC42/Calls.json" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotUser != "AC42" || gotPass != "secret" {
		t.Errorf("unexpected basic auth %s:%s", gotUser, gotPass)
	}
	if gotTo != "+15550001122" {
		t.Errorf("expected To=+15550001122, got %q", gotTo)
	}
	if gotFrom != "+15550009999" {
		t.Errorf("expected From=+15550009999, got %q", gotFrom)
	}
	want := "https://ringer.example.com/voice/" + id.String() + "/"
	if gotURL != want {
		t.Errorf("expected Url=%s, got %q", want, gotURL)
	}
}

func TestPlaceCall_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "authenticate"}`))
	}))
	defer server.Close()

	client := New(Config{APIBase: server.URL, AccountSID: "AC42"})

	_, err := client.PlaceCall(context.Background(), uuid.New(), "+15550001122")
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry status code: %v", err)
	}
}

func TestPlaceCall_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := New(Config{APIBase: server.URL, AccountSID: "AC42"})

	_, err := client.PlaceCall(context.Background(), uuid.New(), "+15550001122")
	if err == nil {
		t.Fatal("expected unmarshal error")
	}
}
