// resonance-mcp exposes the resonance matching engine as an MCP stdio server.
//
// Environment variables:
//
//	RESONANCE_DB_PATH — SQLite database path (default: ./data/resonance.db)
//	RESONANCE_DIM     — vector dimension enforced at registration (default: 8)
//
// Usage:
//
//	go install github.com/goblincore/resonance/cmd/resonance-mcp
//	resonance-mcp
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/goblincore/resonance"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	dbPath := os.Getenv("RESONANCE_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/resonance.db"
	}

	dim := 0
	if v := os.Getenv("RESONANCE_DIM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid RESONANCE_DIM %q: %v", v, err)
		}
		dim = n
	}

	cfg := resonance.Config{
		DBPath:          dbPath,
		VectorDimension: dim,
	}

	engine, err := resonance.Init(cfg)
	if err != nil {
		log.Fatalf("resonance init: %v", err)
	}
	defer engine.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "resonance-mcp",
		Version: "1.0.0",
	}, nil)

	// --- Tool: register_creator ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "register_creator",
		Description: "Register (or update) a creator with an expectation profile and feedback-loop flag.",
	}, registerCreatorHandler(engine))

	// --- Tool: register_receiver ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "register_receiver",
		Description: "Register (or update) a receiver: value vector, sentiment profile, reputation, interaction history.",
	}, registerReceiverHandler(engine))

	// --- Tool: create_artifact ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_artifact",
		Description: "Store a new artifact under a creator. Returns the artifact ID (generated if omitted).",
	}, createArtifactHandler(engine))

	// --- Tool: rank_receivers ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "rank_receivers",
		Description: "Dry-run ranking: score every eligible receiver for an artifact without making offers or running feedback.",
	}, rankHandler(engine))

	// --- Tool: offer_artifact ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "offer_artifact",
		Description: "Offer an artifact to the ranked receiver pool. Emits offer events and, when the creator's feedback loop is enabled, evolves the artifact and creator after each offer.",
	}, offerHandler(engine))

	// --- Tool: list_offers ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_offers",
		Description: "List the most recent offers from the journal, newest first.",
	}, listOffersHandler(engine))

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("resonance-mcp: %v", err)
	}
}

// --- Input types ---

type registerCreatorInput struct {
	CreatorID           string    `json:"creator_id"                     jsonschema:"Opaque creator ID"`
	ExpectationProfile  []float64 `json:"expectation_profile"            jsonschema:"Real-valued expectation profile, engine dimension"`
	FeedbackLoopEnabled bool      `json:"feedback_loop_enabled,omitempty" jsonschema:"Run the feedback loop after each offer"`
}

type registerReceiverInput struct {
	ReceiverID         string    `json:"receiver_id"                   jsonschema:"Opaque receiver ID"`
	ValueVector        []float64 `json:"value_vector"                  jsonschema:"Real-valued value vector, engine dimension"`
	SentimentProfile   []string  `json:"sentiment_profile,omitempty"   jsonschema:"Theme tags the receiver responds to"`
	ReputationScore    float64   `json:"reputation_score"              jsonschema:"Eligibility gate; must exceed 0.5 to be ranked"`
	InteractionHistory []string  `json:"interaction_history,omitempty" jsonschema:"Creator IDs of prior engagements, duplicates meaningful"`
}

type createArtifactInput struct {
	CreatorID    string    `json:"creator_id"              jsonschema:"Owning creator ID"`
	ArtifactID   string    `json:"artifact_id,omitempty"   jsonschema:"Optional artifact ID; generated when empty"`
	QualityScore float64   `json:"quality_score,omitempty" jsonschema:"Quality score carried on the artifact"`
	Vector       []float64 `json:"vector"                  jsonschema:"Real-valued feature vector, engine dimension"`
	Themes       []string  `json:"themes,omitempty"        jsonschema:"Theme tags"`
}

type rankInput struct {
	CreatorID  string `json:"creator_id"  jsonschema:"Creator ID"`
	ArtifactID string `json:"artifact_id" jsonschema:"Artifact ID"`
}

type offerInput struct {
	CreatorID  string `json:"creator_id"  jsonschema:"Creator ID"`
	ArtifactID string `json:"artifact_id" jsonschema:"Artifact ID"`
}

type listOffersInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max offers to return (default 20)"`
}

// --- Handlers ---

func registerCreatorHandler(engine *resonance.Engine) func(context.Context, *mcp.CallToolRequest, registerCreatorInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input registerCreatorInput) (*mcp.CallToolResult, any, error) {
		err := engine.RegisterCreator(&resonance.Creator{
			ID:                  input.CreatorID,
			ExpectationProfile:  input.ExpectationProfile,
			FeedbackLoopEnabled: input.FeedbackLoopEnabled,
		})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"creator_id": input.CreatorID,
			"status":     "registered",
		})), nil, nil
	}
}

func registerReceiverHandler(engine *resonance.Engine) func(context.Context, *mcp.CallToolRequest, registerReceiverInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input registerReceiverInput) (*mcp.CallToolResult, any, error) {
		err := engine.RegisterReceiver(&resonance.Receiver{
			ID:                 input.ReceiverID,
			ValueVector:        input.ValueVector,
			SentimentProfile:   input.SentimentProfile,
			ReputationScore:    input.ReputationScore,
			InteractionHistory: input.InteractionHistory,
		})
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"receiver_id": input.ReceiverID,
			"status":      "registered",
		})), nil, nil
	}
}

func createArtifactHandler(engine *resonance.Engine) func(context.Context, *mcp.CallToolRequest, createArtifactInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input createArtifactInput) (*mcp.CallToolResult, any, error) {
		artifact := &resonance.Artifact{
			ID:           input.ArtifactID,
			QualityScore: input.QualityScore,
			Vector:       input.Vector,
			Themes:       input.Themes,
		}
		if err := engine.CreateArtifact(input.CreatorID, artifact); err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"artifact_id": artifact.ID,
			"status":      "created",
		})), nil, nil
	}
}

func rankHandler(engine *resonance.Engine) func(context.Context, *mcp.CallToolRequest, rankInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input rankInput) (*mcp.CallToolResult, any, error) {
		ranked, err := engine.Rank(input.CreatorID, input.ArtifactID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}

		out := make([]map[string]any, len(ranked))
		for i, rr := range ranked {
			out[i] = map[string]any{
				"receiver_id":    rr.Receiver.ID,
				"combined_score": rr.Score,
				"reputation":     rr.Receiver.ReputationScore,
			}
		}
		return textResult(jsonString(out)), nil, nil
	}
}

func offerHandler(engine *resonance.Engine) func(context.Context, *mcp.CallToolRequest, offerInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input offerInput) (*mcp.CallToolResult, any, error) {
		offers, err := engine.Offer(input.CreatorID, input.ArtifactID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}

		out := make([]map[string]any, len(offers))
		for i, o := range offers {
			out[i] = offerToMap(o)
		}
		return textResult(jsonString(out)), nil, nil
	}
}

func listOffersHandler(engine *resonance.Engine) func(context.Context, *mcp.CallToolRequest, listOffersInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input listOffersInput) (*mcp.CallToolResult, any, error) {
		offers, err := engine.ListOffers(input.Limit)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}

		out := make([]map[string]any, len(offers))
		for i, o := range offers {
			out[i] = offerToMap(o)
		}
		return textResult(jsonString(out)), nil, nil
	}
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func offerToMap(o resonance.Offer) map[string]any {
	return map[string]any{
		"artifact_id":    o.ArtifactID,
		"receiver_id":    o.ReceiverID,
		"combined_score": o.Score,
	}
}

func jsonString(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal: %v"}`, err)
	}
	return string(data)
}
