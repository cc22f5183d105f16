package gemini

// Wire types for the generateContent endpoint, limited to the fields this
// adapter sends and reads.

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	ToolConfig        *geminiToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type geminiToolConfig struct {
	FunctionCallingConfig *geminiFunctionCallingConfig `json:"functionCallingConfig,omitempty"`
}

type geminiFunctionCallingConfig struct {
	Mode string `json:"mode,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
	ModelVersion  string              `json:"modelVersion"`
}

type geminiCandidate struct {
	Content           geminiContent            `json:"content"`
	FinishReason      string                   `json:"finishReason"`
	GroundingMetadata *geminiGroundingMetadata `json:"groundingMetadata"`
}

type geminiGroundingMetadata struct {
	WebSearchQueries  []string               `json:"webSearchQueries"`
	GroundingChunks   []geminiGroundingChunk `json:"groundingChunks"`
	GroundingSupports []geminiSupport        `json:"groundingSupports"`
}

type geminiGroundingChunk struct {
	Web *geminiWebSource `json:"web"`
}

type geminiWebSource struct {
	URI    string `json:"uri"`
	Title  string `json:"title"`
	Domain string `json:"domain,omitempty"`
}

type geminiSupport struct {
	Segment               *geminiSegment `json:"segment"`
	GroundingChunkIndices []int          `json:"groundingChunkIndices"`
}

type geminiSegment struct {
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	Text       string `json:"text,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// evidenceRecord is the normalized shape handed to the citation classifier.
// Anchored records carry the support's segment and chunk indices alongside
// the referenced source; unlinked records carry only the source.
type evidenceRecord struct {
	Segment               *geminiSegment   `json:"segment,omitempty"`
	GroundingChunkIndices []int            `json:"groundingChunkIndices,omitempty"`
	Web                   *geminiWebSource `json:"web,omitempty"`
}
