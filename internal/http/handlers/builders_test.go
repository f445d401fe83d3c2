package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ethlas/builderhub/internal/domain/builder"
	"github.com/ethlas/builderhub/internal/http/handlers"
	"github.com/ethlas/builderhub/internal/http/middlewares"
	"github.com/ethlas/builderhub/internal/security"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Fake store implementation of the handlers.BuilderStore interface

type fakeStore struct {
	createFn     func(ctx context.Context, b builder.Builder) (string, error)
	getByIDFn    func(ctx context.Context, id string) (builder.Builder, error)
	getByEmailFn func(ctx context.Context, email string) (builder.Builder, error)
	listFn       func(ctx context.Context, limit int) ([]builder.Builder, error)
	updateFn     func(ctx context.Context, id string, b builder.Builder) error
	deleteFn     func(ctx context.Context, id string) error
}

func (f *fakeStore) Create(ctx context.Context, b builder.Builder) (string, error) {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}

	return "generated-id", nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (builder.Builder, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}

	return builder.Builder{}, builder.ErrNotFound
}

func (f *fakeStore) GetByEmail(ctx context.Context, email string) (builder.Builder, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}

	return builder.Builder{}, builder.ErrNotFound
}

func (f *fakeStore) List(ctx context.Context, limit int) ([]builder.Builder, error) {
	if f.listFn != nil {
		return f.listFn(ctx, limit)
	}

	return []builder.Builder{}, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, b builder.Builder) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, b)
	}

	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}

	return nil
}

type fakeIssuer struct {
	issueFn func(email string) (string, error)
}

func (f *fakeIssuer) Issue(email string) (string, error) {
	if f.issueFn != nil {
		return f.issueFn(email)
	}

	return "token-for-" + email, nil
}

// fakeVerifier lets protected-route tests control the claim the
// middleware attaches.
type fakeVerifier struct {
	email string
}

func (f *fakeVerifier) Verify(string) (string, error) {
	if f.email == "" {
		return "", errors.New("invalid token")
	}

	return f.email, nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func doJSON(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)

	return w, env
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()

	hash, err := security.HashPassword(plain)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	return hash
}

func publicRouter(store handlers.BuilderStore, issuer handlers.TokenIssuer) *gin.Engine {
	r := gin.New()
	h := handlers.NewBuildersHandler(store, issuer, discardLogger())

	r.POST("/builders", h.Register)
	r.POST("/builders/login", h.Login)
	r.GET("/builders", h.List)
	r.GET("/builders/:id", h.GetProfile)

	return r
}

func protectedRouter(store handlers.BuilderStore, issuer handlers.TokenIssuer, claim string) *gin.Engine {
	r := gin.New()
	h := handlers.NewBuildersHandler(store, issuer, discardLogger())
	mw := middlewares.NewAuthMiddleware(&fakeVerifier{email: claim})

	r.PUT("/builders/:id", mw.RequireAuth(), h.Update)
	r.DELETE("/builders/:id", mw.RequireAuth(), h.Delete)

	return r
}

// Register

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		store      *fakeStore
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"email":"a@x.com","full_name":"A","password":"secret1"}`,
			store:      &fakeStore{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing password",
			body:       `{"email":"a@x.com","full_name":"A"}`,
			store:      &fakeStore{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "store write failure",
			body: `{"email":"a@x.com","full_name":"A","password":"secret1"}`,
			store: &fakeStore{
				createFn: func(context.Context, builder.Builder) (string, error) {
					return "", errors.New("write failed")
				},
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := publicRouter(tc.store, &fakeIssuer{})

			w, env := doJSON(r, http.MethodPost, "/builders", tc.body)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus != http.StatusOK {
				if env.Status {
					t.Fatalf("error responses must carry status:false, body=%s", w.Body.String())
				}
				return
			}

			var data map[string]interface{}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("data not an object: %v", err)
			}

			if data["id"] != "generated-id" {
				t.Fatalf("data.id = %v, want generated-id", data["id"])
			}

			if data["token"] != "token-for-a@x.com" {
				t.Fatalf("data.token = %v", data["token"])
			}

			if _, leaked := data["password"]; leaked {
				t.Fatalf("password must never appear in a response, body=%s", w.Body.String())
			}

			if _, raw := data["join_date"]; raw {
				t.Fatalf("raw join_date must not appear, only join_date_human, body=%s", w.Body.String())
			}

			if data["join_date_human"] == "" {
				t.Fatalf("join_date_human missing, body=%s", w.Body.String())
			}
		})
	}
}

func TestRegisterHashesBeforePersisting(t *testing.T) {
	var persisted builder.Builder

	store := &fakeStore{
		createFn: func(_ context.Context, b builder.Builder) (string, error) {
			persisted = b
			return "id-1", nil
		},
	}

	r := publicRouter(store, &fakeIssuer{})

	w, _ := doJSON(r, http.MethodPost, "/builders", `{"email":"a@x.com","full_name":"A","password":"secret1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if persisted.PasswordHash == "" || persisted.PasswordHash == "secret1" {
		t.Fatalf("stored password must be a hash, got %q", persisted.PasswordHash)
	}

	if !security.CheckPassword(persisted.PasswordHash, "secret1") {
		t.Fatalf("stored hash does not verify against the submitted password")
	}

	if persisted.JoinDate == 0 {
		t.Fatalf("join_date must be stamped at registration")
	}
}

// Login

func TestLogin(t *testing.T) {
	stored := builder.Builder{
		ID:           "id-1",
		Email:        "a@x.com",
		FullName:     "A",
		JoinDate:     1700000000000,
		PasswordHash: mustHash(t, "secret1"),
	}

	lookup := func(_ context.Context, email string) (builder.Builder, error) {
		if email == stored.Email {
			return stored, nil
		}
		return builder.Builder{}, builder.ErrNotFound
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantToken  bool
	}{
		{
			name:       "unknown email",
			body:       `{"email":"nobody@x.com","password":"secret1"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong password",
			body:       `{"email":"a@x.com","password":"wrong"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "correct credentials",
			body:       `{"email":"a@x.com","password":"secret1"}`,
			wantStatus: http.StatusOK,
			wantToken:  true,
		},
		{
			name:       "missing password field",
			body:       `{"email":"a@x.com"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := publicRouter(&fakeStore{getByEmailFn: lookup}, &fakeIssuer{})

			w, env := doJSON(r, http.MethodPost, "/builders/login", tc.body)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			if !tc.wantToken {
				return
			}

			var data map[string]interface{}
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatalf("data not an object: %v", err)
			}

			if data["token"] != "token-for-a@x.com" {
				t.Fatalf("data.token = %v", data["token"])
			}

			if _, leaked := data["password"]; leaked {
				t.Fatalf("password must never appear in a response, body=%s", w.Body.String())
			}
		})
	}
}

// Get profile

func TestGetProfile(t *testing.T) {
	stored := builder.Builder{
		ID:           "id-1",
		Email:        "a@x.com",
		FullName:     "A",
		JoinDate:     1700000000000,
		PasswordHash: "some-hash",
	}

	store := &fakeStore{
		getByIDFn: func(_ context.Context, id string) (builder.Builder, error) {
			if id == stored.ID {
				return stored, nil
			}
			return builder.Builder{}, builder.ErrNotFound
		},
	}

	r := publicRouter(store, &fakeIssuer{})

	t.Run("found", func(t *testing.T) {
		w, env := doJSON(r, http.MethodGet, "/builders/id-1", "")

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		var data map[string]interface{}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("data not an object: %v", err)
		}

		if data["email"] != "a@x.com" || data["full_name"] != "A" {
			t.Fatalf("unexpected profile: %v", data)
		}

		if _, hasToken := data["token"]; hasToken {
			t.Fatalf("profile fetch must not issue a token, body=%s", w.Body.String())
		}

		if _, leaked := data["password"]; leaked {
			t.Fatalf("password must never appear in a response, body=%s", w.Body.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		w, _ := doJSON(r, http.MethodGet, "/builders/missing", "")

		if w.Code != http.StatusNotFound {
			t.Fatalf("got status %d, want 404, body=%s", w.Code, w.Body.String())
		}
	})
}

// List

func TestList(t *testing.T) {
	t.Run("caps the limit at ten", func(t *testing.T) {
		var gotLimit int

		store := &fakeStore{
			listFn: func(_ context.Context, limit int) ([]builder.Builder, error) {
				gotLimit = limit
				return []builder.Builder{
					{ID: "b", Email: "b@x.com", FullName: "B", JoinDate: 2000},
					{ID: "a", Email: "a@x.com", FullName: "A", JoinDate: 1000},
				}, nil
			},
		}

		r := publicRouter(store, &fakeIssuer{})

		w, env := doJSON(r, http.MethodGet, "/builders", "")

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		if gotLimit != 10 {
			t.Fatalf("store queried with limit %d, want 10", gotLimit)
		}

		var profiles []map[string]interface{}
		if err := json.Unmarshal(env.Data, &profiles); err != nil {
			t.Fatalf("data not a list: %v", err)
		}

		if len(profiles) != 2 || profiles[0]["id"] != "b" || profiles[1]["id"] != "a" {
			t.Fatalf("store ordering must be preserved, got %v", profiles)
		}
	})

	t.Run("empty store yields empty list", func(t *testing.T) {
		r := publicRouter(&fakeStore{}, &fakeIssuer{})

		w, env := doJSON(r, http.MethodGet, "/builders", "")

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
		}

		if string(env.Data) != "[]" {
			t.Fatalf("data = %s, want []", env.Data)
		}
	})
}

// Update

func TestUpdate(t *testing.T) {
	newStored := func(t *testing.T) builder.Builder {
		return builder.Builder{
			ID:           "id-1",
			Email:        "a@x.com",
			FullName:     "A",
			JoinDate:     1700000000000,
			PasswordHash: mustHash(t, "secret1"),
		}
	}

	tests := []struct {
		name       string
		claim      string
		body       string
		wantStatus int
	}{
		{
			name:       "missing current password",
			claim:      "a@x.com",
			body:       `{"full_name":"New Name"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "mismatched confirm password",
			claim:      "a@x.com",
			body:       `{"current_password":"secret1","password":"new1","confirm_password":"new2"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "ownership mismatch",
			claim:      "intruder@x.com",
			body:       `{"current_password":"secret1","full_name":"New Name"}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "wrong current password",
			claim:      "a@x.com",
			body:       `{"current_password":"nope","full_name":"New Name"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "success",
			claim:      "a@x.com",
			body:       `{"current_password":"secret1","full_name":"New Name"}`,
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stored := newStored(t)
			mutated := false

			store := &fakeStore{
				getByIDFn: func(_ context.Context, id string) (builder.Builder, error) {
					if id == stored.ID {
						return stored, nil
					}
					return builder.Builder{}, builder.ErrNotFound
				},
				updateFn: func(_ context.Context, _ string, b builder.Builder) error {
					mutated = true
					stored = b
					return nil
				},
			}

			r := protectedRouter(store, &fakeIssuer{}, tc.claim)

			req := httptest.NewRequest(http.MethodPut, "/builders/id-1", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer some-token")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus != http.StatusOK && mutated {
				t.Fatalf("rejected update must not reach the store")
			}

			if tc.wantStatus == http.StatusOK {
				if !mutated {
					t.Fatalf("accepted update never reached the store")
				}

				if stored.FullName != "New Name" {
					t.Fatalf("full_name not updated: %q", stored.FullName)
				}

				// Untouched fields keep their stored values.
				if stored.Email != "a@x.com" || stored.JoinDate != 1700000000000 {
					t.Fatalf("unsupplied fields must be preserved: %+v", stored)
				}

				if !security.CheckPassword(stored.PasswordHash, "secret1") {
					t.Fatalf("password must stay unchanged when not supplied")
				}
			}
		})
	}
}

func TestUpdateRehashesChangedPassword(t *testing.T) {
	stored := builder.Builder{
		ID:           "id-1",
		Email:        "a@x.com",
		FullName:     "A",
		JoinDate:     1700000000000,
		PasswordHash: mustHash(t, "secret1"),
	}

	store := &fakeStore{
		getByIDFn: func(_ context.Context, id string) (builder.Builder, error) {
			return stored, nil
		},
		updateFn: func(_ context.Context, _ string, b builder.Builder) error {
			stored = b
			return nil
		},
	}

	r := protectedRouter(store, &fakeIssuer{}, "a@x.com")

	body := `{"current_password":"secret1","password":"secret2","confirm_password":"secret2"}`
	req := httptest.NewRequest(http.MethodPut, "/builders/id-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer some-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if !security.CheckPassword(stored.PasswordHash, "secret2") {
		t.Fatalf("new password was not hashed into the record")
	}

	if security.CheckPassword(stored.PasswordHash, "secret1") {
		t.Fatalf("old password still verifies after the change")
	}
}

// Delete

func TestDelete(t *testing.T) {
	stored := builder.Builder{
		ID:           "id-1",
		Email:        "a@x.com",
		FullName:     "A",
		JoinDate:     1700000000000,
		PasswordHash: "hash",
	}

	tests := []struct {
		name       string
		claim      string
		id         string
		deleteErr  error
		wantStatus int
	}{
		{
			name:       "unknown id",
			claim:      "a@x.com",
			id:         "missing",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "ownership mismatch",
			claim:      "intruder@x.com",
			id:         "id-1",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "store failure",
			claim:      "a@x.com",
			id:         "id-1",
			deleteErr:  errors.New("write failed"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "success",
			claim:      "a@x.com",
			id:         "id-1",
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{
				getByIDFn: func(_ context.Context, id string) (builder.Builder, error) {
					if id == stored.ID {
						return stored, nil
					}
					return builder.Builder{}, builder.ErrNotFound
				},
				deleteFn: func(context.Context, string) error {
					return tc.deleteErr
				},
			}

			r := protectedRouter(store, &fakeIssuer{}, tc.claim)

			req := httptest.NewRequest(http.MethodDelete, "/builders/"+tc.id, nil)
			req.Header.Set("Authorization", "Bearer some-token")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
		})
	}
}
