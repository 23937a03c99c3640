package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"vmeste.me/auth"
	"vmeste.me/config"
	"vmeste.me/model"
	"vmeste.me/pkg/cors"
	"vmeste.me/pkg/msgbroker"
	"vmeste.me/pkg/utils"
	"vmeste.me/pkg/websocket"
	"vmeste.me/room"
	"vmeste.me/storage"
)

type API struct {
	echo         *echo.Echo
	config       *config.Config
	storage      storage.Storage
	auth         *auth.Service
	rooms        *room.Store
	channels     websocket.Channels
	msgBroker    msgbroker.MessageBroker
	workerPool   *workerpool.WorkerPool
	roomsChannel string

	// receipt sequence stamped onto every inbound event; arrival order per
	// room is a subsequence of it
	seq uint64

	peersMu sync.Mutex
	peers   map[string]websocket.Subscriber
}

func New(c *config.Config, s storage.Storage, a *auth.Service, mb msgbroker.MessageBroker) *API {
	api := &API{
		echo:         echo.New(),
		config:       c,
		storage:      s,
		auth:         a,
		rooms:        room.New(c.RoomCap),
		channels:     websocket.NewChannels(),
		msgBroker:    mb,
		workerPool:   workerpool.New(c.MaxWorkers),
		roomsChannel: "rooms:",
		peers:        make(map[string]websocket.Subscriber),
	}

	api.echo.HideBanner = true
	api.echo.Use(cors.Middleware)

	api.echo.GET("/", api.ping)
	api.echo.POST("/auth/register", api.register)
	api.echo.POST("/auth/login", api.login)
	api.echo.GET("/room/:roomID", api.getRoom)
	api.echo.Any("/ws", api.websocket)

	return api
}

func (api *API) Start() error {
	err := api.msgBroker.Subscribe(api.roomsChannel+"*", api.handleMessages)
	if err != nil {
		return err
	}
	return api.echo.Start(":" + strconv.Itoa(api.config.HttpPort))
}

func (api *API) Close(ctx context.Context) error {
	err := api.echo.Shutdown(ctx)
	api.workerPool.StopWait()
	return err
}

// Ping handler
func (api *API) ping(c echo.Context) error {
	_, err := api.storage.IncrVisits()
	if err != nil {
		log.Error(err)
	}
	return c.String(http.StatusOK, "OK")
}

type (
	registerRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	loginRequest struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}

	authResponse struct {
		User        *model.User `json:"user"`
		AccessToken string      `json:"accessToken"`
	}
)

// Account registration endpoint
func (api *API) register(c echo.Context) error {
	if err := api.rateLimited(c); err != nil {
		return err
	}

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity)
	}

	u, token, err := api.auth.Register(req.Username, req.Email, req.Password)
	if errors.Is(err, auth.ErrUserExists) {
		return echo.NewHTTPError(http.StatusConflict, "email or username is already in use")
	}
	if err != nil {
		log.Warn(err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	return c.JSON(http.StatusOK, &authResponse{User: u.Public(), AccessToken: token})
}

// Login endpoint, accepts email or username
func (api *API) login(c echo.Context) error {
	if err := api.rateLimited(c); err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity)
	}

	u, token, err := api.auth.Login(req.Login, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if err != nil {
		log.Error(err)
		return echo.NewHTTPError(http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, &authResponse{User: u.Public(), AccessToken: token})
}

func (api *API) rateLimited(c echo.Context) error {
	hits, err := api.storage.IncrRateLimit("auth:"+c.RealIP(), api.config.AuthRateWindow)
	if err != nil {
		log.Error(err)
		return nil
	}
	if hits > int64(api.config.AuthRateLimit) {
		return echo.NewHTTPError(http.StatusTooManyRequests)
	}
	return nil
}

// Returns a snapshot of the room state, join preflight for clients
func (api *API) getRoom(c echo.Context) error {
	state, exists := api.rooms.Snapshot(c.Param("roomID"))
	if !exists {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, state)
}

// Endpoint to establish websocket connection
func (api *API) websocket(c echo.Context) error {
	// identity is optional: a bearer token must resolve, otherwise the
	// connection is anonymous behind a validated username
	var identity *model.Identity
	if token := c.QueryParam("token"); token != "" {
		var err error
		identity, err = api.auth.Resolve(token)
		if err != nil {
			return c.NoContent(http.StatusUnauthorized)
		}
	} else if name := c.QueryParam("username"); name != "" && !utils.IsNameValid(name) {
		return c.NoContent(http.StatusUnprocessableEntity)
	}

	conn, _, _, err := ws.UpgradeHTTP(c.Request(), c.Response())
	if err != nil {
		log.Warn(err)
		return c.NoContent(http.StatusBadRequest)
	}

	peer := websocket.NewPeer(uuid.NewString(), conn)
	if identity != nil {
		log.Infof("connection %s authenticated as %s", peer.GetID(), identity.Username)
	}
	api.servePeer(peer)
	return nil
}
