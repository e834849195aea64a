// Standalone mock of the downstream transcription endpoint, useful for
// exercising segment delivery locally:
//
//	go run test_transcription_server.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type TranscriptionResponse struct {
	SegmentID   string    `json:"segment_id"`
	StreamID    uint32    `json:"stream_id"`
	Text        string    `json:"text"`
	Confidence  float32   `json:"confidence"`
	Language    string    `json:"language"`
	Duration    float64   `json:"duration"`
	ProcessedAt time.Time `json:"processed_at"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := r.ParseMultipartForm(10 << 20) // 10 MB
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	segmentID := r.FormValue("segment_id")
	streamID := r.FormValue("stream_id")
	sourceID := r.FormValue("source_id")
	sampleRate := r.FormValue("sample_rate")
	startTime := r.FormValue("start_time")
	endTime := r.FormValue("end_time")
	duration := r.FormValue("duration")
	format := r.FormValue("format")
	capturedAt := r.FormValue("captured_at")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("SEGMENT RECEIVED:")
	log.Printf("  Segment ID: %s", segmentID)
	log.Printf("  Stream ID: %s", streamID)
	log.Printf("  Source ID: %s", sourceID)
	log.Printf("  Sample Rate: %s Hz", sampleRate)
	log.Printf("  Window: %s .. %s (%s seconds)", startTime, endTime, duration)
	log.Printf("  Captured At: %s", capturedAt)
	log.Printf("  Filename: %s (%s, %d bytes)", header.Filename, format, len(audioData))

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	response := TranscriptionResponse{
		SegmentID:   segmentID,
		StreamID:    parseUint32(streamID),
		Text:        "this is a mock transcription of the delivered speech segment",
		Confidence:  0.95,
		Language:    "en",
		Duration:    parseFloat64(duration),
		ProcessedAt: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

func parseUint32(s string) uint32 {
	var val uint32
	fmt.Sscanf(s, "%d", &val)
	return val
}

func parseFloat64(s string) float64 {
	var val float64
	fmt.Sscanf(s, "%f", &val)
	return val
}

func main() {
	http.HandleFunc("/transcribe", transcribeHandler)

	port := ":9000"
	log.Printf("Mock transcription server starting on port %s", port)
	log.Printf("Endpoint: http://localhost%s/transcribe", port)
	log.Println("Point transcription.endpoint at http://localhost:9000/transcribe")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
