package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/playludo/ludo-backend/internal/entity"
	"github.com/playludo/ludo-backend/internal/repository"
	"github.com/playludo/ludo-backend/internal/room"
)

func (that *Server) handleCreateGame(ctx context.Context, sess *session, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleCreateGame")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if strings.TrimSpace(payloadReq.PlayerName) == "" {
		return that.sendError(conn, "player_name is required")
	}

	host := &entity.Player{
		ID:    uuid.NewString(),
		Name:  payloadReq.PlayerName,
		Color: payloadReq.Color,
	}

	gameRoom, err := that.registry.Create(ctx, host)
	if err != nil {
		log.Error("failed to create room", "error", err)
		return that.sendError(conn, err.Error())
	}

	return gameRoom.Serialized(func() error {
		that.bindPlayer(ctx, sess, host, gameRoom.ID(), conn)

		log.Info("game created", "gameID", gameRoom.ID(), "playerID", host.ID)

		return that.sendMessage(conn, EventGameCreated, ResponsePayload{
			GameID:    gameRoom.ID(),
			PlayerID:  host.ID,
			GameState: gameRoom.Snapshot(),
		})
	})
}

func (that *Server) handleJoinGame(ctx context.Context, sess *session, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleJoinGame")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if strings.TrimSpace(payloadReq.PlayerName) == "" {
		return that.sendError(conn, "player_name is required")
	}

	gameRoom, err := that.registry.Get(ctx, payloadReq.GameID)
	if err != nil {
		log.Error("failed to find room", "gameID", payloadReq.GameID, "error", err)
		return that.sendError(conn, err.Error())
	}

	player := &entity.Player{
		ID:    uuid.NewString(),
		Name:  payloadReq.PlayerName,
		Color: payloadReq.Color,
	}

	return gameRoom.Serialized(func() error {
		snapshot, joinErr := gameRoom.Join(ctx, player)
		if joinErr != nil {
			log.Warn("join rejected", "gameID", gameRoom.ID(), "error", joinErr)
			return that.sendError(conn, joinErr.Error())
		}

		that.bindPlayer(ctx, sess, player, gameRoom.ID(), conn)

		if sendErr := that.sendMessage(conn, EventGameJoined, ResponsePayload{
			GameID:    gameRoom.ID(),
			PlayerID:  player.ID,
			GameState: snapshot,
		}); sendErr != nil {
			return fmt.Errorf("failed to send response: %w", sendErr)
		}

		that.broadcast(gameRoom.MemberIDs(), EventPlayerJoined, ResponsePayload{
			PlayerName: player.Name,
			Color:      player.Color,
			GameState:  snapshot,
		})

		log.Info("player joined game", "gameID", gameRoom.ID(), "playerID", player.ID)

		return nil
	})
}

func (that *Server) handleRejoinGame(ctx context.Context, sess *session, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleRejoinGame")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	stored, err := that.sessions.GetByID(ctx, sess.id)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return that.sendError(conn, "no previous session to rejoin")
	}

	if err != nil {
		log.Error("failed to load session", "error", err)
		return that.sendError(conn, "failed to rejoin game")
	}

	gameRoom, err := that.registry.Get(ctx, payloadReq.GameID)
	if err != nil {
		return that.sendError(conn, fmt.Sprintf("cannot rejoin: %v", err))
	}

	player := &entity.Player{
		ID:    stored.PlayerID,
		Name:  stored.Name,
		Color: stored.Color,
	}

	return gameRoom.Serialized(func() error {
		snapshot, reseated, rejoinErr := gameRoom.Rejoin(ctx, player)
		if rejoinErr != nil {
			log.Warn("rejoin rejected", "gameID", gameRoom.ID(), "error", rejoinErr)
			return that.sendError(conn, rejoinErr.Error())
		}

		that.bindPlayer(ctx, sess, player, gameRoom.ID(), conn)

		if sendErr := that.sendMessage(conn, EventGameRejoined, ResponsePayload{
			GameID:    gameRoom.ID(),
			PlayerID:  player.ID,
			GameState: snapshot,
		}); sendErr != nil {
			return fmt.Errorf("failed to send response: %w", sendErr)
		}

		if reseated {
			that.broadcast(gameRoom.MemberIDs(), EventPlayerJoined, ResponsePayload{
				PlayerName: player.Name,
				Color:      player.Color,
				GameState:  snapshot,
			})
		}

		log.Info("player rejoined game", "gameID", gameRoom.ID(), "playerID", player.ID)

		return nil
	})
}

func (that *Server) handleStartGame(ctx context.Context, sess *session, _ *Message, conn *connection) error {
	log := that.logger.With("method", "handleStartGame")

	gameRoom, err := that.roomOf(ctx, sess, conn)
	if err != nil {
		return err
	}

	return gameRoom.Serialized(func() error {
		snapshot, startErr := gameRoom.Start(ctx, sess.playerID)
		if startErr != nil {
			return that.sendError(conn, startErr.Error())
		}

		that.broadcast(gameRoom.MemberIDs(), EventGameStarted, ResponsePayload{
			GameState: snapshot,
		})

		log.Info("game started", "gameID", gameRoom.ID())

		return nil
	})
}

func (that *Server) handleRollDice(ctx context.Context, sess *session, _ *Message, conn *connection) error {
	log := that.logger.With("method", "handleRollDice")

	gameRoom, err := that.roomOf(ctx, sess, conn)
	if err != nil {
		return err
	}

	return gameRoom.Serialized(func() error {
		outcome, rollErr := gameRoom.RollDice(ctx, sess.playerID)
		if rollErr != nil {
			return that.sendError(conn, rollErr.Error())
		}

		members := gameRoom.MemberIDs()

		that.broadcast(members, EventDiceRolled, ResponsePayload{
			DiceValue: outcome.Dice,
			PlayerID:  sess.playerID,
			GameState: outcome.RolledSnapshot,
		})

		// forfeit and auto-pass surface as an immediate turn change
		if outcome.TurnChanged {
			that.broadcast(members, EventTurnChanged, ResponsePayload{
				GameState: outcome.TurnSnapshot,
				Message:   outcome.Message,
			})
		}

		log.Info("dice rolled", "gameID", gameRoom.ID(), "playerID", sess.playerID, "value", outcome.Dice)

		return nil
	})
}

func (that *Server) handleMovePiece(ctx context.Context, sess *session, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleMovePiece")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Piece == nil {
		return that.sendError(conn, "piece is required")
	}

	gameRoom, err := that.roomOf(ctx, sess, conn)
	if err != nil {
		return err
	}

	return gameRoom.Serialized(func() error {
		// the client's "from" hint is advisory only; the room re-validates
		// against its own board
		outcome, moveErr := gameRoom.MovePiece(ctx, sess.playerID, payloadReq.Color, *payloadReq.Piece)
		if moveErr != nil {
			return that.sendError(conn, moveErr.Error())
		}

		members := gameRoom.MemberIDs()

		that.broadcast(members, EventPieceMoved, ResponsePayload{
			Color:     outcome.Color,
			Piece:     &outcome.Piece,
			DiceValue: outcome.Dice,
			GameState: outcome.MovedSnapshot,
		})

		that.broadcast(members, EventTurnChanged, ResponsePayload{
			GameState: outcome.TurnSnapshot,
			Message:   outcome.Message,
		})

		log.Info("piece moved",
			"gameID", gameRoom.ID(),
			"playerID", sess.playerID,
			"piece", outcome.Piece,
			"captured", outcome.Captured != nil,
			"won", outcome.Won,
		)

		return nil
	})
}

func (that *Server) handlePassTurn(ctx context.Context, sess *session, _ *Message, conn *connection) error {
	log := that.logger.With("method", "handlePassTurn")

	gameRoom, err := that.roomOf(ctx, sess, conn)
	if err != nil {
		return err
	}

	return gameRoom.Serialized(func() error {
		outcome, passErr := gameRoom.PassTurn(ctx, sess.playerID)
		if passErr != nil {
			return that.sendError(conn, passErr.Error())
		}

		that.broadcast(gameRoom.MemberIDs(), EventTurnChanged, ResponsePayload{
			GameState: outcome.Snapshot,
			Message:   outcome.Message,
		})

		log.Info("turn passed", "gameID", gameRoom.ID(), "playerID", sess.playerID)

		return nil
	})
}

func (that *Server) handleChatMessage(ctx context.Context, sess *session, msg *Message, conn *connection) error {
	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if strings.TrimSpace(payloadReq.Message) == "" {
		return that.sendError(conn, "message is required")
	}

	gameRoom, err := that.roomOf(ctx, sess, conn)
	if err != nil {
		return err
	}

	return gameRoom.Serialized(func() error {
		posted, postErr := gameRoom.PostChat(ctx, sess.playerID, payloadReq.Message)
		if postErr != nil {
			return that.sendError(conn, postErr.Error())
		}

		that.broadcast(gameRoom.MemberIDs(), EventChatMessage, ResponsePayload{
			PlayerName: posted.PlayerName,
			Message:    posted.Message,
		})

		return nil
	})
}

// bindPlayer wires a player identity to this connection and persists the
// session so the identity survives the connection.
func (that *Server) bindPlayer(ctx context.Context, sess *session, player *entity.Player, roomID string, conn *connection) {
	sess.playerID = player.ID
	sess.roomID = roomID

	that.registerConnection(player.ID, conn)

	record := &entity.Session{
		ID:       sess.id,
		PlayerID: player.ID,
		Name:     player.Name,
		Color:    player.Color,
		RoomID:   roomID,
	}
	if err := that.sessions.CreateOrUpdate(ctx, record); err != nil {
		that.logger.Error("failed to persist session", "session", sess.id, "error", err)
	}
}

// roomOf resolves the room this connection is bound to, reporting to the
// client when it is not in one.
func (that *Server) roomOf(ctx context.Context, sess *session, conn *connection) (*room.Room, error) {
	if sess.playerID == "" || sess.roomID == "" {
		return nil, that.sendError(conn, "you are not in a game")
	}

	gameRoom, err := that.registry.Get(ctx, sess.roomID)
	if err != nil {
		return nil, that.sendError(conn, err.Error())
	}

	return gameRoom, nil
}

func decodePayload(msg *Message) (*RequestPayload, error) {
	var payload RequestPayload

	if len(msg.Payload) == 0 {
		return &payload, nil
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return &payload, nil
}
