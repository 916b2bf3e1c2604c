package session

import (
	"net"
	"testing"
	"time"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(data []byte) error              { return nil }
func (m *MockConnection) ReadMessage() ([]byte, error)        { return nil, nil }
func (m *MockConnection) Close() error                        { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration) {}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sessionID := "test_session_1"
	sess := NewSession(sessionID, "Ada", &MockConnection{})

	// Test Add
	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected session count to be 1, got %d", manager.Count())
	}

	// Test Get
	retrievedSess, exists := manager.Get(sessionID)
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrievedSess != sess {
		t.Fatal("Get should return the same session instance")
	}

	// Test Remove
	manager.Remove(sessionID)
	if manager.Count() != 0 {
		t.Fatalf("Expected session count to be 0 after removal, got %d", manager.Count())
	}

	_, exists = manager.Get(sessionID)
	if exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByRoomCode(t *testing.T) {
	manager := NewManager()

	sess1 := NewSession("session1", "Ada", &MockConnection{})
	sess1.RoomCode = "ROOM1"

	sess2 := NewSession("session2", "Grace", &MockConnection{})
	sess2.RoomCode = "ROOM2"

	sess3 := NewSession("session3", "Edsger", &MockConnection{})
	sess3.RoomCode = "ROOM1"

	manager.Add(sess1)
	manager.Add(sess2)
	manager.Add(sess3)

	room1Sessions := manager.GetByRoomCode("ROOM1")
	if len(room1Sessions) != 2 {
		t.Errorf("Expected 2 sessions for ROOM1, got %d", len(room1Sessions))
	}

	room2Sessions := manager.GetByRoomCode("ROOM2")
	if len(room2Sessions) != 1 {
		t.Errorf("Expected 1 session for ROOM2, got %d", len(room2Sessions))
	}

	room3Sessions := manager.GetByRoomCode("ROOM3")
	if len(room3Sessions) != 0 {
		t.Errorf("Expected 0 sessions for ROOM3, got %d", len(room3Sessions))
	}
}

func TestSession_Identity(t *testing.T) {
	sess := NewSession("conn-1", "Ada", &MockConnection{})

	if sess.GetID() != "conn-1" {
		t.Errorf("Expected id conn-1, got %q", sess.GetID())
	}
	if sess.GetName() != "Ada" {
		t.Errorf("Expected name Ada, got %q", sess.GetName())
	}
}
