package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type TranscriptionResponse struct {
	SessionID   string    `json:"session_id"`
	SegmentID   string    `json:"segment_id"`
	Text        string    `json:"text"`
	Confidence  float32   `json:"confidence"`
	Language    string    `json:"language"`
	Duration    float64   `json:"duration"`
	ProcessedAt time.Time `json:"processed_at"`
}

type PredictRequest struct {
	Text string `json:"text"`
}

type PredictResponse struct {
	Text        string  `json:"text"`
	Prediction  string  `json:"prediction"`
	Probability float64 `json:"probability"`
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form
	err := r.ParseMultipartForm(10 << 20) // 10 MB
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	sessionID := r.FormValue("session_id")
	segmentID := r.FormValue("segment_id")
	sampleRate := r.FormValue("sample_rate")
	duration := r.FormValue("duration")
	language := r.FormValue("language")

	// Get audio file
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

	log.Printf("🎤 TRANSCRIPTION REQUEST RECEIVED:")
	log.Printf("  Session ID: %s", sessionID)
	log.Printf("  Segment ID: %s", segmentID)
	log.Printf("  Sample Rate: %s Hz", sampleRate)
	log.Printf("  Duration: %s seconds", duration)
	log.Printf("  Filename: %s", header.Filename)
	log.Printf("  Audio Size: %d bytes", len(audioData))
	log.Printf("  Language: %s", language)

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	response := TranscriptionResponse{
		SessionID:   sessionID,
		SegmentID:   segmentID,
		Text:        "hello I am calling from your bank about suspicious activity on your account",
		Confidence:  0.95,
		Language:    "en",
		Duration:    parseFloat64(duration),
		ProcessedAt: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPTION RESPONSE SENT: '%s'", response.Text)
	log.Println("---")
}

func predictHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error parsing request", http.StatusBadRequest)
		return
	}

	// Crude keyword scoring so risky phrases actually move the needle
	probability := 0.1
	for _, keyword := range []string{"bank", "account", "gift card", "wire", "social security", "urgent"} {
		if strings.Contains(strings.ToLower(req.Text), keyword) {
			probability += 0.25
		}
	}
	if probability > 1 {
		probability = 1
	}

	prediction := "legitimate"
	if probability >= 0.5 {
		prediction = "scam"
	}

	response := PredictResponse{
		Text:        req.Text,
		Prediction:  prediction,
		Probability: probability,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("🔮 PREDICTION SENT: %s (%.2f) for %d chars", prediction, probability, len(req.Text))
}

func parseFloat64(s string) float64 {
	var val float64
	fmt.Sscanf(s, "%f", &val)
	return val
}

func main() {
	http.HandleFunc("/transcribe", transcribeHandler)
	http.HandleFunc("/predict", predictHandler)

	port := ":9000"
	log.Printf("🚀 Test Backends Server starting on port %s", port)
	log.Printf("📡 Transcription: http://localhost%s/transcribe", port)
	log.Printf("📡 Classifier:    http://localhost%s/predict", port)
	log.Println("💡 Point transcription.endpoint and risk.endpoint at these URLs")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
