// Package gateway terminates WebSocket connections, authenticates the
// handshake and shuttles frames between the socket and the router. It is
// deliberately thin: everything stateful lives behind it.
package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/relay/pkg/auth"
	"github.com/mahaj/relay/pkg/registry"
	"github.com/mahaj/relay/pkg/router"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Maximum frame size allowed from peer.
	maxFrameSize = 4096

	// Consecutive malformed frames tolerated before the connection is
	// closed as protocol abuse.
	maxProtocolErrors = 5
)

type Gateway struct {
	reg      *registry.Registry
	router   *router.Router
	verifier *auth.Verifier
	log      zerolog.Logger

	// Clients ping (or send heartbeat frames) at this interval; a silent
	// connection is dropped after twice that.
	heartbeat time.Duration

	upgrader websocket.Upgrader
}

func New(reg *registry.Registry, rt *router.Router, verifier *auth.Verifier, heartbeat time.Duration, log zerolog.Logger) *Gateway {
	return &Gateway{
		reg:       reg,
		router:    rt,
		verifier:  verifier,
		heartbeat: heartbeat,
		log:       log.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is enforced upstream
			},
		},
	}
}

func (g *Gateway) pongWait() time.Duration { return 2 * g.heartbeat }

// ServeHTTP authenticates and upgrades one connection, then runs its pumps.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}
	userID, err := g.verifier.Verify(token)
	if err != nil {
		g.log.Warn().Err(err).Msg("handshake rejected")
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	sess, err := g.reg.Register(userID, conn)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", userID).Msg("registration rejected")
		_ = conn.Close()
		return
	}

	c := &client{gw: g, sess: sess, conn: conn, userID: userID}
	go c.writePump()
	go c.readPump()
}

// bearerToken pulls the credential from the Authorization header, falling
// back to the token query parameter for clients that cannot set headers.
func bearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if strings.HasPrefix(token, "Bearer ") {
		token = strings.TrimPrefix(token, "Bearer ")
	}
	return token
}
