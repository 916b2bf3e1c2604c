package server

import (
	"errors"
	"net/http"
	"net/rpc"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/playhouse/partyserver/broadcast"
	"github.com/playhouse/partyserver/config"
	"github.com/playhouse/partyserver/logger"
	"github.com/playhouse/partyserver/monitor"
	"github.com/playhouse/partyserver/network"
	"github.com/playhouse/partyserver/persistence"
	"github.com/playhouse/partyserver/room"
	admin_rpc "github.com/playhouse/partyserver/rpc"
	"github.com/playhouse/partyserver/services"
	"github.com/playhouse/partyserver/session"
)

type GameServer struct {
	addr           string
	metricsAddr    string
	defaultName    string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	recordService  *services.RecordService
	mon            *monitor.Monitor
	rpcServer      *admin_rpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, gateway persistence.Gateway) *GameServer {
	mon := monitor.NewMonitor("partyserver")
	records := services.NewRecordService(gateway)

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		metricsAddr:    cfg.Server.MetricsAddress,
		defaultName:    cfg.Room.DefaultPlayerName,
		roomManager:    room.NewManager(gateway, records, mon, cfg.Room.IdleTimeout),
		sessionManager: session.NewManager(),
		recordService:  records,
		mon:            mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.roomManager.SetBroadcaster(broadcast.NewRoomBroadcaster(s.roomManager))

	// 初始化RPC服务器
	rpcServer, err := admin_rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	adminService := admin_rpc.NewAdminService(s.roomManager, records)
	rpc.Register(adminService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	if s.metricsAddr != "" {
		s.mon.StartServer(s.metricsAddr)
	}

	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.roomManager.Stop()
}

// handleWebSocket resolves the room before touching the socket, so a bad
// room code fails with a plain HTTP status instead of a half-open
// connection.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("room")
	if code == "" {
		http.Error(w, "room code required", http.StatusBadRequest)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = s.defaultName
	}

	activeRoom, err := s.roomManager.GetOrStart(r.Context(), code)
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "unknown room code", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.Errorf("Failed to start room %s: %v", code, err)
		http.Error(w, "room unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	s.handleConnection(activeRoom, conn, name)
}

func (s *GameServer) handleConnection(activeRoom *room.Room, conn *websocket.Conn, name string) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), name, wsConn)
	sess.RoomCode = activeRoom.Code

	s.sessionManager.Add(sess)
	s.mon.IncConnectedPlayers()
	activeRoom.OnConnect(sess)

	logger.Log.Infof("New connection from %s, session ID: %s, room: %s", wsConn.RemoteAddr(), sess.GetID(), activeRoom.Code)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		activeRoom.OnDisconnect(sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.mon.DecConnectedPlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			raw, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			activeRoom.OnMessage(sess.GetID(), raw)
		}
	}
}
