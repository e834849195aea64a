package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/chaxiu/vad/internal/config"
	"github.com/chaxiu/vad/internal/metrics"
	"github.com/chaxiu/vad/internal/protocol"
	"github.com/chaxiu/vad/internal/stream"
)

// UDPServer handles incoming ingest datagrams
type UDPServer struct {
	conn      *net.UDPConn
	config    *config.ServerConfig
	audioCfg  *config.AudioConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
	streamMgr *stream.Manager

	// Concurrency management. The receive loop has its own WaitGroup so
	// Stop can wait it out before closing the worker channel it sends on.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	recvWG sync.WaitGroup

	// Packet processing
	packetChan chan *incomingPacket

	// Counters for the stats API
	packetsReceived  uint64
	packetsProcessed uint64
	parseErrors      uint64
	packetsDropped   uint64
	mu               sync.RWMutex
}

// incomingPacket represents a received UDP packet with metadata
type incomingPacket struct {
	data       []byte
	remoteAddr *net.UDPAddr
	timestamp  time.Time
}

// NewUDPServer creates a new UDP server instance. Metrics may be nil.
func NewUDPServer(cfg *config.ServerConfig, audioCfg *config.AudioConfig, logger *slog.Logger, m *metrics.Metrics, streamMgr *stream.Manager) *UDPServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &UDPServer{
		config:     cfg,
		audioCfg:   audioCfg,
		logger:     logger,
		metrics:    m,
		streamMgr:  streamMgr,
		ctx:        ctx,
		cancel:     cancel,
		packetChan: make(chan *incomingPacket, cfg.QueueSize),
	}
}

// Start begins listening for UDP packets
func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.UDPPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	s.conn = conn

	if err := s.conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("UDP server started",
		slog.String("address", addr.String()),
		slog.Int("buffer_size", s.config.BufferSize),
		slog.Int("workers", s.config.Workers),
	)

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.packetProcessor(i)
	}

	s.recvWG.Add(1)
	go s.receiveLoop()

	return nil
}

// Stop gracefully stops the UDP server
func (s *UDPServer) Stop() error {
	s.logger.Info("stopping UDP server")

	s.cancel()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	// The receive loop must be gone before its send target closes.
	s.recvWG.Wait()

	// Closing the channel lets the workers drain and exit.
	close(s.packetChan)
	s.wg.Wait()

	stats := s.GetStatistics()
	s.logger.Info("UDP server stopped",
		slog.Uint64("packets_received", stats.PacketsReceived),
		slog.Uint64("packets_processed", stats.PacketsProcessed),
		slog.Uint64("parse_errors", stats.ParseErrors),
		slog.Uint64("packets_dropped", stats.PacketsDropped),
	)

	return nil
}

// receiveLoop is the main packet receiving loop
func (s *UDPServer) receiveLoop() {
	defer s.recvWG.Done()

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		// Periodic deadline so shutdown is noticed promptly.
		if err := s.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("failed to read UDP packet", slog.String("error", err.Error()))
				continue
			}
		}

		s.mu.Lock()
		s.packetsReceived++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordPacketReceived()
		}

		packetData := make([]byte, n)
		copy(packetData, buffer[:n])

		packet := &incomingPacket{
			data:       packetData,
			remoteAddr: remoteAddr,
			timestamp:  time.Now(),
		}

		select {
		case s.packetChan <- packet:
			if s.metrics != nil {
				s.metrics.SetQueueSize(len(s.packetChan))
			}
		default:
			s.mu.Lock()
			s.packetsDropped++
			s.mu.Unlock()
			if s.metrics != nil {
				s.metrics.RecordPacketDropped()
			}
			s.logger.Warn("packet processing queue full, dropping packet",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
		}
	}
}

// packetProcessor processes packets from the packet channel
func (s *UDPServer) packetProcessor(workerID int) {
	defer s.wg.Done()

	s.logger.Debug("packet processor started", slog.Int("worker_id", workerID))

	for packet := range s.packetChan {
		s.handlePacket(packet, workerID)
	}

	s.logger.Debug("packet processor stopped", slog.Int("worker_id", workerID))
}

// handlePacket processes a single incoming packet
func (s *UDPServer) handlePacket(packet *incomingPacket, workerID int) {
	parsedPacket, err := protocol.ParsePacket(packet.data)
	if err != nil {
		s.mu.Lock()
		s.parseErrors++
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordParseError()
		}

		s.logger.Error("failed to parse packet",
			slog.String("remote_addr", packet.remoteAddr.String()),
			slog.Int("packet_size", len(packet.data)),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
		)
		return
	}

	s.mu.Lock()
	s.packetsProcessed++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordPacketProcessed()
	}

	switch parsedPacket.Header.PacketType {
	case protocol.PacketTypeSignaling:
		s.processSignalingPacket(parsedPacket.Header, parsedPacket.Signaling, workerID)
	case protocol.PacketTypeAudio:
		s.processAudioPacket(parsedPacket.Header, parsedPacket.Audio, workerID)
	}
}

// processSignalingPacket handles signaling packets (session creation/update)
func (s *UDPServer) processSignalingPacket(header *protocol.Header, payload *protocol.SignalingPayload, workerID int) {
	s.logger.Debug("processing signaling packet",
		slog.Uint64("stream_id", uint64(header.StreamID)),
		slog.String("source_id", payload.GetSourceID()),
		slog.Uint64("sample_rate", uint64(payload.SampleRate)),
		slog.Int("worker_id", workerID),
	)

	sampleRate := int(payload.SampleRate)
	if sampleRate == 0 {
		sampleRate = s.audioCfg.SampleRate
	}

	_, err := s.streamMgr.CreateSession(header.StreamID, payload.GetSourceID(), sampleRate)
	if err != nil {
		s.logger.Error("failed to create stream session",
			slog.Uint64("stream_id", uint64(header.StreamID)),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
		)
		return
	}

	s.logger.Info("signaling packet processed",
		slog.Uint64("stream_id", uint64(header.StreamID)),
		slog.String("source_id", payload.GetSourceID()),
		slog.Int("worker_id", workerID),
	)
}

// processAudioPacket routes audio packets to their stream session
func (s *UDPServer) processAudioPacket(header *protocol.Header, payload *protocol.AudioPayload, workerID int) {
	session, exists := s.streamMgr.GetSession(header.StreamID)
	if !exists {
		s.logger.Warn("received audio packet for unknown stream",
			slog.Uint64("stream_id", uint64(header.StreamID)),
			slog.Uint64("sequence", uint64(payload.Sequence)),
			slog.Int("audio_size", len(payload.AudioData)),
			slog.Int("worker_id", workerID),
		)
		return
	}

	session.AddAudio(payload.Sequence, payload.AudioData)

	s.logger.Debug("audio packet processed",
		slog.Uint64("stream_id", uint64(header.StreamID)),
		slog.Uint64("sequence", uint64(payload.Sequence)),
		slog.Int("audio_size", len(payload.AudioData)),
		slog.Int("worker_id", workerID),
	)
}

// GetStatistics returns current server statistics
func (s *UDPServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStatistics{
		PacketsReceived:  s.packetsReceived,
		PacketsProcessed: s.packetsProcessed,
		ParseErrors:      s.parseErrors,
		PacketsDropped:   s.packetsDropped,
		ActiveStreams:    uint64(s.streamMgr.GetActiveSessionCount()),
		QueueSize:        uint64(len(s.packetChan)),
		QueueCapacity:    uint64(cap(s.packetChan)),
	}
}

// ServerStatistics represents server performance metrics
type ServerStatistics struct {
	PacketsReceived  uint64 `json:"packets_received"`
	PacketsProcessed uint64 `json:"packets_processed"`
	ParseErrors      uint64 `json:"parse_errors"`
	PacketsDropped   uint64 `json:"packets_dropped"`
	ActiveStreams    uint64 `json:"active_streams"`
	QueueSize        uint64 `json:"queue_size"`
	QueueCapacity    uint64 `json:"queue_capacity"`
}
