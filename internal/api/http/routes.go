package httpapi

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-feed/internal/notify"
	"github.com/i474232898/weather-feed/internal/weather"
)

var validate = validator.New()

// timeNow anchors the end-only city filter.
var timeNow = time.Now

// Authenticator is what the login, sign-up and guarded routes need.
type Authenticator interface {
	TokenValidator
	Login(username, password string) (string, error)
	Signup(username, password string) (string, error)
}

// Options toggles optional routes.
type Options struct {
	AllowSignup bool
	// Logger records who changed which reading; nil means slog.Default().
	Logger *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. A nil hub
// leaves the /data channel unregistered.
func RegisterRoutes(app *fiber.App, service *weather.Service, authn Authenticator, hub *notify.Hub, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app.Post("/login", func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		}

		token, err := authn.Login(req.Username, req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		}
		return c.JSON(tokenResponse{AccessToken: token, TokenType: "bearer"})
	})

	if opts.AllowSignup {
		app.Post("/signup", func(c *fiber.Ctx) error {
			var req credentialsRequest
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
			if err := validate.Struct(req); err != nil {
				return fmt.Errorf("%w: %s", weather.ErrValidation, err.Error())
			}

			token, err := authn.Signup(req.Username, req.Password)
			if err != nil {
				return err
			}
			return c.Status(fiber.StatusCreated).JSON(tokenResponse{AccessToken: token, TokenType: "bearer"})
		})
	}

	w := app.Group("/weather", RequireAuth(authn))

	w.Get("/", func(c *fiber.Ctx) error {
		readings, err := service.List(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(nonNil(readings))
	})

	w.Get("/city/:name", func(c *fiber.Ctx) error {
		city, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return fmt.Errorf("%w: invalid city name", weather.ErrValidation)
		}

		rng, err := weather.ParseTimeRange(c.Query("start_time"), c.Query("end_time"), timeNow())
		if err != nil {
			return err
		}

		readings, err := service.ListByCity(c.UserContext(), city, rng)
		if err != nil {
			return err
		}
		return c.JSON(nonNil(readings))
	})

	w.Get("/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c.Params("id"))
		if err != nil {
			return err
		}
		reading, err := service.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(reading)
	})

	w.Post("/", func(c *fiber.Ctx) error {
		in, err := bindReading(c)
		if err != nil {
			return err
		}
		created, err := service.Create(c.UserContext(), in)
		if err != nil {
			return err
		}
		logger.Info("reading created", "id", created.ID, "city", created.CityName, "user", Username(c))
		return c.JSON(created)
	})

	w.Patch("/", func(c *fiber.Ctx) error {
		in, err := bindReading(c)
		if err != nil {
			return err
		}
		updated, err := service.Update(c.UserContext(), in)
		if err != nil {
			return err
		}
		logger.Info("reading updated", "id", updated.ID, "user", Username(c))
		return c.JSON(updated)
	})

	w.Delete("/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c.Params("id"))
		if err != nil {
			return err
		}
		deleted, err := service.Delete(c.UserContext(), id)
		if err != nil {
			return err
		}
		logger.Info("reading deleted", "id", deleted.ID, "user", Username(c))
		return c.JSON(deleted)
	})

	if hub != nil {
		app.Use(notify.Namespace, func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get(notify.Namespace, websocket.New(func(conn *websocket.Conn) {
			hub.Serve(conn)
		}))
	}
}

// credentialsRequest is the login and sign-up body, JSON or form encoded.
type credentialsRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func bindReading(c *fiber.Ctx) (weather.ReadingInput, error) {
	var in weather.ReadingInput
	if err := c.BodyParser(&in); err != nil {
		return in, fmt.Errorf("%w: invalid request body: %s", weather.ErrValidation, err.Error())
	}
	return in, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", weather.ErrValidation, raw)
	}
	return id, nil
}

func nonNil(readings []weather.Reading) []weather.Reading {
	if readings == nil {
		return []weather.Reading{}
	}
	return readings
}
