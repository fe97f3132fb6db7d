// Package vis serves visualization snapshots to websocket clients.
//
// The audio core is pull-only: a ticker goroutine reads the latest snapshot
// at UI rate (well below the analysis hop rate) and broadcasts it as JSON.
// Clients that fall behind are dropped.
package vis

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ajshooting/spectralmorph/dsp/formant"
	"github.com/ajshooting/spectralmorph/dsp/spectrum"
	"github.com/ajshooting/spectralmorph/internal/log"
)

const publishInterval = 33 * time.Millisecond

// Source yields visualization snapshots. *formant.Processor implements it.
type Source interface {
	LatestVisualizationData(dst *formant.VisualizationData)
}

// Frame is the JSON payload sent to clients.
type Frame struct {
	SpectrumDB []float64 `json:"spectrum_db"`
	EnvelopeDB []float64 `json:"envelope_db"`
	F1Hz       float64   `json:"f1_hz"`
	F2Hz       float64   `json:"f2_hz"`
}

// Publisher broadcasts analysis snapshots over websocket.
type Publisher struct {
	addr       string
	sampleRate float64
	source     Source

	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	server *http.Server
	done   chan struct{}

	snapshot formant.VisualizationData
	frame    Frame
}

// NewPublisher creates a Publisher serving ws://addr/ws.
func NewPublisher(addr string, source Source, sampleRate float64) *Publisher {
	return &Publisher{
		addr:       addr,
		sampleRate: sampleRate,
		source:     source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
		done:    make(chan struct{}),
		frame: Frame{
			SpectrumDB: make([]float64, formant.NumBins),
			EnvelopeDB: make([]float64, formant.NumBins),
		},
	}
}

// Start begins serving and broadcasting in background goroutines.
func (p *Publisher) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", p.handleWebSocket)

	p.server = &http.Server{Addr: p.addr, Handler: mux}

	go func() {
		log.Infof("vis: listening on ws://%s/ws", p.addr)
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("vis: server error: %v", err)
		}
	}()

	go p.publishLoop()
}

// Close stops broadcasting and shuts the server down.
func (p *Publisher) Close() error {
	close(p.done)

	p.clientsMu.Lock()
	for client := range p.clients {
		client.Close()
		delete(p.clients, client)
	}
	p.clientsMu.Unlock()

	if p.server != nil {
		return p.server.Close()
	}
	return nil
}

func (p *Publisher) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("vis: upgrade failed: %v", err)
		return
	}

	p.clientsMu.Lock()
	p.clients[conn] = true
	total := len(p.clients)
	p.clientsMu.Unlock()
	log.Infof("vis: client connected, total: %d", total)

	go func() {
		// Block until the client goes away, then unregister it.
		if _, _, err := conn.ReadMessage(); err != nil {
			p.clientsMu.Lock()
			delete(p.clients, conn)
			total := len(p.clients)
			p.clientsMu.Unlock()
			conn.Close()
			log.Infof("vis: client disconnected, total: %d", total)
		}
	}()
}

func (p *Publisher) publishLoop() {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.clientsMu.Lock()
			idle := len(p.clients) == 0
			p.clientsMu.Unlock()
			if idle {
				continue
			}

			p.source.LatestVisualizationData(&p.snapshot)
			buildFrame(&p.frame, &p.snapshot, p.sampleRate)
			p.broadcast(&p.frame)
		}
	}
}

func (p *Publisher) broadcast(frame *Frame) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()

	for client := range p.clients {
		// A client that cannot take a frame before the next one is due has
		// fallen behind; the deadline turns that into a write error.
		client.SetWriteDeadline(time.Now().Add(publishInterval))
		if err := client.WriteJSON(frame); err != nil {
			log.Warnf("vis: dropping client: %v", err)
			client.Close()
			delete(p.clients, client)
		}
	}
}

// buildFrame converts a snapshot into the wire representation: magnitudes in
// dBFS and formant markers in Hz.
func buildFrame(dst *Frame, snap *formant.VisualizationData, sampleRate float64) {
	if len(dst.SpectrumDB) != len(snap.Spectrum) {
		dst.SpectrumDB = make([]float64, len(snap.Spectrum))
	}
	if len(dst.EnvelopeDB) != len(snap.Envelope) {
		dst.EnvelopeDB = make([]float64, len(snap.Envelope))
	}

	spectrum.AmplitudeToDB(dst.SpectrumDB, snap.Spectrum)
	spectrum.AmplitudeToDB(dst.EnvelopeDB, snap.Envelope)
	dst.F1Hz = spectrum.BinToHz(snap.F1Bin, sampleRate, formant.FFTSize)
	dst.F2Hz = spectrum.BinToHz(snap.F2Bin, sampleRate, formant.FFTSize)
}
