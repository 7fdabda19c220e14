package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type KnowledgeFile struct {
	ClinicName string  `json:"clinic_name"`
	Entries    []Entry `json:"entries"`
}

type Entry struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

type KnowledgeRequest struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/seed-knowledge.go <knowledge-file.json>")
		fmt.Println("Example: go run scripts/seed-knowledge.go knowledge/clinic.json")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	token := strings.TrimSpace(os.Getenv("DOCTOR_TOKEN"))
	if token == "" {
		fmt.Println("❌ DOCTOR_TOKEN is required (doctor console JWT)")
		os.Exit(1)
	}

	knowledgeFile := os.Args[1]

	fmt.Printf("🌱 Seeding Knowledge Base\n")
	fmt.Printf("============================\n")
	fmt.Printf("API URL: %s\n", apiURL)
	fmt.Printf("Knowledge file: %s\n\n", knowledgeFile)

	data, err := os.ReadFile(knowledgeFile)
	if err != nil {
		fmt.Printf("❌ Error reading file: %v\n", err)
		os.Exit(1)
	}

	var knowledge KnowledgeFile
	if err := json.Unmarshal(data, &knowledge); err != nil {
		fmt.Printf("❌ Error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clinic: %s\n", knowledge.ClinicName)
	fmt.Printf("Entries to upload: %d\n\n", len(knowledge.Entries))

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}

	ok := 0
	for i, entry := range knowledge.Entries {
		category := entry.Category
		if category == "" {
			category = "general"
		}

		payload, err := json.Marshal(KnowledgeRequest{Content: entry.Content, Category: category})
		if err != nil {
			fmt.Printf("   ❌ Entry %d: error marshaling request: %v\n", i+1, err)
			continue
		}

		url := fmt.Sprintf("%s/doctor/knowledge", apiURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			fmt.Printf("   ❌ Entry %d: error creating request: %v\n", i+1, err)
			continue
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(httpReq)
		if err != nil {
			fmt.Printf("   ❌ Entry %d: error sending request: %v\n", i+1, err)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			ok++
			fmt.Printf("   ✅ Entry %d/%d uploaded (%s)\n", i+1, len(knowledge.Entries), category)
		} else {
			fmt.Printf("   ❌ Entry %d failed (status %d): %s\n", i+1, resp.StatusCode, string(body))
		}

		// Embedding each entry hits the model API; keep a small gap between calls.
		if i+1 < len(knowledge.Entries) {
			time.Sleep(200 * time.Millisecond)
		}
	}

	fmt.Printf("\n✅ Knowledge seeding complete! %d/%d entries stored\n", ok, len(knowledge.Entries))
	fmt.Printf("\n📝 Next steps:\n")
	fmt.Printf("  1. List entries: curl -H 'Authorization: Bearer $DOCTOR_TOKEN' %s/doctor/knowledge\n", apiURL)
	fmt.Printf("  2. Send a patient message touching a seeded topic and check the reply uses it\n")
}
