package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/i474232898/weather-feed/internal/auth"
	"github.com/i474232898/weather-feed/internal/notify"
	"github.com/i474232898/weather-feed/internal/store"
	"github.com/i474232898/weather-feed/internal/weather"
)

type event struct {
	name    string
	payload any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingNotifier) Notify(_ context.Context, name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name: name, payload: payload})
}

func (r *recordingNotifier) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

type testEnv struct {
	app      *fiber.App
	store    *store.MemoryStore
	notifier *recordingNotifier
	token    string
}

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil, io.Discard)
}

// newTestEnvWith registers the routes with hub and writes JSON logs to logs.
func newTestEnvWith(t *testing.T, hub *notify.Hub, logs io.Writer) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	st := store.NewMemoryStore()
	rec := &recordingNotifier{}
	svc := weather.NewService(st, nil, rec,
		weather.WithClock(func() time.Time { return fixedNow }),
		weather.WithLogger(logger),
	)

	authSvc, err := auth.NewService(auth.Config{
		Secret:      "test-secret",
		AllowSignup: true,
		HashCost:    bcrypt.MinCost,
	}, logger)
	require.NoError(t, err)
	require.NoError(t, authSvc.AddUser("test", "testtest"))
	token, err := authSvc.IssueToken("test")
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterRoutes(app, svc, authSvc, hub, Options{AllowSignup: true, Logger: logger})

	return &testEnv{app: app, store: st, notifier: rec, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func validPayload() map[string]any {
	return map[string]any{
		"city_name":   "Paris",
		"latitude":    48.8566,
		"longitude":   "2.3522",
		"temperature": 12.5,
		"feels_like":  11.0,
		"humidity":    "65",
		"pressure":    1012.4,
		"description": "light rain",
	}
}

func decodeReading(t *testing.T, body []byte) weather.Reading {
	t.Helper()
	var r weather.Reading
	require.NoError(t, json.Unmarshal(body, &r))
	return r
}

func decodeReadings(t *testing.T, body []byte) []weather.Reading {
	t.Helper()
	var rs []weather.Reading
	require.NoError(t, json.Unmarshal(body, &rs))
	return rs
}

func decodeMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Error)
	return resp.Message
}

func TestWeatherRoutes_RequireBearerToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeded, err := env.store.Insert(ctx, weather.Reading{CityName: "Paris", Timestamp: fixedNow})
	require.NoError(t, err)

	update := validPayload()
	update["id"] = seeded.ID

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/weather", nil},
		{http.MethodGet, "/weather/1", nil},
		{http.MethodGet, "/weather/city/Paris", nil},
		{http.MethodPost, "/weather", validPayload()},
		{http.MethodPatch, "/weather", update},
		{http.MethodDelete, "/weather/1", nil},
	}

	for _, tt := range tests {
		for _, token := range []string{"", "not-a-token"} {
			t.Run(tt.method+" "+tt.path, func(t *testing.T) {
				status, _ := env.do(t, tt.method, tt.path, tt.body, token)
				assert.Equal(t, http.StatusUnauthorized, status)
			})
		}
	}

	all, err := env.store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []weather.Reading{seeded}, all)
	assert.Empty(t, env.notifier.all())
}

func TestRequireAuth_SchemeIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	req.Header.Set(fiber.HeaderAuthorization, "bearer "+env.token)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/weather", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Basic "+env.token)
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/login", map[string]string{"username": "test", "password": "testtest"}, "")
	require.Equal(t, http.StatusOK, status)

	var tok tokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))
	require.NotEmpty(t, tok.AccessToken)

	status, body = env.do(t, http.MethodGet, "/weather", nil, tok.AccessToken)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	for _, creds := range []map[string]string{
		{"username": "test", "password": "wrong"},
		{"username": "nobody", "password": "testtest"},
		{"username": "test"},
	} {
		status, body = env.do(t, http.MethodPost, "/login", creds, "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid credentials", decodeMessage(t, body))
	}
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/signup", map[string]string{"username": "alice", "password": "password123"}, "")
	require.Equal(t, http.StatusCreated, status)

	var tok tokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))
	status, _ = env.do(t, http.MethodGet, "/weather", nil, tok.AccessToken)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPost, "/signup", map[string]string{"username": "alice", "password": "password456"}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, "/signup", map[string]string{"username": "bob", "password": "short"}, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreate_BroadcastEqualsStoredRow(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/weather", validPayload(), env.token)
	require.Equal(t, http.StatusOK, status, string(body))
	created := decodeReading(t, body)

	stored, err := env.store.Get(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, "Paris", stored.CityName)
	assert.Equal(t, 2.3522, stored.Longitude)
	assert.Equal(t, 65, stored.Humidity)
	assert.Equal(t, 1012, stored.Pressure)
	assert.True(t, stored.Timestamp.Equal(fixedNow))

	events := env.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, weather.EventNewData, events[0].name)
	assert.Equal(t, stored, events[0].payload)

	assert.Equal(t, stored.ID, created.ID)
	assert.True(t, stored.Timestamp.Equal(created.Timestamp))
}

func TestCreate_RejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	missing := validPayload()
	delete(missing, "description")
	status, _ := env.do(t, http.MethodPost, "/weather", missing, env.token)
	assert.Equal(t, http.StatusBadRequest, status)

	bad := validPayload()
	bad["humidity"] = "very"
	status, _ = env.do(t, http.MethodPost, "/weather", bad, env.token)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Empty(t, env.notifier.all())
}

func TestCreate_RejectsNonFiniteNumbers(t *testing.T) {
	env := newTestEnv(t)

	for _, v := range []string{"NaN", "Inf", "-infinity"} {
		body := validPayload()
		body["temperature"] = v
		status, _ := env.do(t, http.MethodPost, "/weather", body, env.token)
		assert.Equal(t, http.StatusBadRequest, status, v)
	}

	all, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, env.notifier.all())

	status, body := env.do(t, http.MethodGet, "/weather", nil, env.token)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestCityFilter_SingleDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seed := []weather.Reading{
		{CityName: "Paris", Timestamp: time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)},
		{CityName: "Paris", Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{CityName: "Paris", Timestamp: time.Date(2024, 3, 1, 23, 59, 59, 999999000, time.UTC)},
		{CityName: "Paris", Timestamp: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{CityName: "Tokyo", Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, r := range seed {
		_, err := env.store.Insert(ctx, r)
		require.NoError(t, err)
	}

	status, body := env.do(t, http.MethodGet, "/weather/city/Paris?start_time=2024-03-01&end_time=2024-03-01", nil, env.token)
	require.Equal(t, http.StatusOK, status)

	got := decodeReadings(t, body)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
	for _, r := range got {
		assert.Equal(t, "Paris", r.CityName)
	}

	status, _ = env.do(t, http.MethodGet, "/weather/city/Paris?start_time=yesterday", nil, env.token)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCityFilter_EscapedName(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.store.Insert(context.Background(), weather.Reading{CityName: "New York", Timestamp: fixedNow})
	require.NoError(t, err)

	status, body := env.do(t, http.MethodGet, "/weather/city/New%20York", nil, env.token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeReadings(t, body), 1)
}

func TestGetReading(t *testing.T) {
	env := newTestEnv(t)
	seeded, err := env.store.Insert(context.Background(), weather.Reading{CityName: "Sydney", Timestamp: fixedNow})
	require.NoError(t, err)

	status, body := env.do(t, http.MethodGet, "/weather/1", nil, env.token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, seeded.CityName, decodeReading(t, body).CityName)

	status, _ = env.do(t, http.MethodGet, "/weather/42", nil, env.token)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodGet, "/weather/abc", nil, env.token)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeded, err := env.store.Insert(ctx, weather.Reading{CityName: "Paris", Timestamp: fixedNow.Add(-time.Hour)})
	require.NoError(t, err)

	t.Run("missing fields", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPatch, "/weather", map[string]any{"id": seeded.ID, "temperature": 3}, env.token)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("missing id", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPatch, "/weather", validPayload(), env.token)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown id", func(t *testing.T) {
		body := validPayload()
		body["id"] = 999
		status, _ := env.do(t, http.MethodPatch, "/weather", body, env.token)
		assert.Equal(t, http.StatusNotFound, status)
	})

	require.Empty(t, env.notifier.all())

	body := validPayload()
	body["id"] = seeded.ID
	body["temperature"] = 30
	status, raw := env.do(t, http.MethodPatch, "/weather", body, env.token)
	require.Equal(t, http.StatusOK, status, string(raw))

	updated := decodeReading(t, raw)
	assert.Equal(t, 30.0, updated.Temperature)
	assert.True(t, updated.Timestamp.Equal(seeded.Timestamp))

	events := env.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, weather.EventEditData, events[0].name)
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodDelete, "/weather/7", nil, env.token)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, decodeMessage(t, body))
	assert.Empty(t, env.notifier.all())

	seeded, err := env.store.Insert(context.Background(), weather.Reading{CityName: "Tokyo", Timestamp: fixedNow})
	require.NoError(t, err)

	status, body = env.do(t, http.MethodDelete, "/weather/1", nil, env.token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, seeded.ID, decodeReading(t, body).ID)

	events := env.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, weather.EventDeleteData, events[0].name)
	assert.Equal(t, seeded.ID, events[0].payload)

	status, _ = env.do(t, http.MethodGet, "/weather/1", nil, env.token)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRequireAuth_SetsUsername(t *testing.T) {
	env := newTestEnv(t)
	authSvc, err := auth.NewService(auth.Config{Secret: "test-secret", HashCost: bcrypt.MinCost}, nil)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(slog.Default())})
	app.Get("/whoami", RequireAuth(authSvc), func(c *fiber.Ctx) error {
		return c.SendString(Username(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+env.token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test", string(body))
}

func TestMutations_LogActingUser(t *testing.T) {
	var logs bytes.Buffer
	env := newTestEnvWith(t, nil, &logs)

	status, body := env.do(t, http.MethodPost, "/weather", validPayload(), env.token)
	require.Equal(t, http.StatusOK, status, string(body))
	created := decodeReading(t, body)

	status, _ = env.do(t, http.MethodDelete, "/weather/1", nil, env.token)
	require.Equal(t, http.StatusOK, status)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["user"] != nil {
			entries = append(entries, entry)
		}
	}

	require.Len(t, entries, 2)
	assert.Equal(t, "reading created", entries[0]["msg"])
	assert.Equal(t, "reading deleted", entries[1]["msg"])
	for _, entry := range entries {
		assert.Equal(t, "test", entry["user"])
		assert.EqualValues(t, created.ID, entry["id"])
	}
}

func TestDataChannel_RequiresUpgrade(t *testing.T) {
	hub := notify.NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer hub.Close()
	env := newTestEnvWith(t, hub, io.Discard)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		status, _ := env.do(t, method, notify.Namespace, nil, "")
		assert.Equal(t, fiber.StatusUpgradeRequired, status, method)
	}
	assert.Zero(t, hub.Count())

	plain := newTestEnv(t)
	status, _ := plain.do(t, http.MethodGet, notify.Namespace, nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}
