package rpc

import (
	"context"
	"net"
	"net/rpc"
	"time"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/logger"
	"github.com/playhouse/partyserver/models"
	"github.com/playhouse/partyserver/room"
	"github.com/playhouse/partyserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the
// caller through the net/rpc package.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc: live room
// inventory, a room's last state, and the leaderboard.
type AdminService struct {
	roomManager *room.Manager
	records     *services.RecordService
}

func NewAdminService(roomManager *room.Manager, records *services.RecordService) *AdminService {
	return &AdminService{roomManager: roomManager, records: records}
}

type RoomSummary struct {
	Code        string
	Phase       string
	Players     int
	Connections int
	CreatedAt   time.Time
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []RoomSummary
}

func (as *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, r := range as.roomManager.Rooms() {
		state := r.Snapshot()
		reply.Rooms = append(reply.Rooms, RoomSummary{
			Code:        r.Code,
			Phase:       string(state.Phase),
			Players:     len(state.Players),
			Connections: r.ConnectionCount(),
			CreatedAt:   r.CreatedAt,
		})
	}
	return nil
}

type GetRoomStateArgs struct {
	Code string
}

type GetRoomStateReply struct {
	Found bool
	State game.State
}

func (as *AdminService) GetRoomState(args *GetRoomStateArgs, reply *GetRoomStateReply) error {
	r, exists := as.roomManager.GetRoom(args.Code)
	if !exists {
		reply.Found = false
		return nil
	}
	reply.Found = true
	reply.State = r.Snapshot()
	return nil
}

type TopScoresArgs struct {
	Limit int
}

type TopScoresReply struct {
	Entries []models.LeaderboardEntry
}

func (as *AdminService) TopScores(args *TopScoresArgs, reply *TopScoresReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := as.records.Leaderboard(ctx, args.Limit)
	if err != nil {
		return err
	}
	reply.Entries = entries
	return nil
}
