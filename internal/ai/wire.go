package ai

import (
	"strings"
	"time"

	"groundchat/internal/model"
)

type wireStore struct {
	Name                  string      `json:"name"`
	DisplayName           string      `json:"displayName"`
	CreateTime            string      `json:"createTime"`
	ActiveDocumentsCount  int64String `json:"activeDocumentsCount"`
	PendingDocumentsCount int64String `json:"pendingDocumentsCount"`
	FailedDocumentsCount  int64String `json:"failedDocumentsCount"`
	SizeBytes             int64String `json:"sizeBytes"`
}

func (w wireStore) toModel() model.Store {
	total := int(w.ActiveDocumentsCount + w.PendingDocumentsCount + w.FailedDocumentsCount)
	return model.Store{
		ID:            w.Name,
		DisplayName:   w.DisplayName,
		CreatedAt:     parseTime(w.CreateTime),
		DocumentCount: total,
		StorageBytes:  int64(w.SizeBytes),
	}
}

type wireMetadataEntry struct {
	Key          string `json:"key"`
	StringValue  string `json:"stringValue,omitempty"`
	NumericValue string `json:"numericValue,omitempty"`
}

type wireDocument struct {
	Name           string              `json:"name"`
	DisplayName    string              `json:"displayName"`
	MimeType       string              `json:"mimeType"`
	SizeBytes      int64String         `json:"sizeBytes"`
	State          string              `json:"state"`
	CreateTime     string              `json:"createTime"`
	UpdateTime     string              `json:"updateTime"`
	CustomMetadata []wireMetadataEntry `json:"customMetadata"`
}

func (w wireDocument) toModel(storeID string) model.Document {
	if storeID == "" {
		storeID = storeIDFromDocumentID(w.Name)
	}
	doc := model.Document{
		ID:          w.Name,
		StoreID:     storeID,
		DisplayName: w.DisplayName,
		MIMEType:    w.MimeType,
		SizeBytes:   int64(w.SizeBytes),
		Status:      parseState(w.State),
		CreatedAt:   parseTime(w.CreateTime),
		UpdatedAt:   parseTime(w.UpdateTime),
	}
	for _, entry := range w.CustomMetadata {
		value := entry.StringValue
		if value == "" {
			value = entry.NumericValue
		}
		doc.CustomMetadata = append(doc.CustomMetadata, model.MetadataEntry{Key: entry.Key, Value: value})
	}
	return doc
}

// wireOperation is the long-running upload operation envelope. The document
// appears in the metadata while processing and in the response once done.
type wireOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Metadata struct {
		Document *wireDocument `json:"document"`
	} `json:"metadata"`
	Response struct {
		Document *wireDocument `json:"document"`
	} `json:"response"`
}

func (op wireOperation) document() *wireDocument {
	if op.Response.Document != nil && op.Response.Document.Name != "" {
		return op.Response.Document
	}
	return op.Metadata.Document
}

type wirePart struct {
	Text string `json:"text"`
}

type wireContent struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

type wireGroundingChunk struct {
	RetrievedContext *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
		Text  string `json:"text"`
	} `json:"retrievedContext"`
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web"`
}

type wireCandidate struct {
	Content           wireContent `json:"content"`
	GroundingMetadata struct {
		GroundingChunks []wireGroundingChunk `json:"groundingChunks"`
	} `json:"groundingMetadata"`
}

type wireGenerateResponse struct {
	Candidates []wireCandidate `json:"candidates"`
}

// citations maps grounding chunks to citations, preserving attribution
// order. Retrieved documents are labelled by title, falling back to URI and
// then to a passage prefix.
func (c wireCandidate) citations() []model.Citation {
	var list []model.Citation
	for _, chunk := range c.GroundingMetadata.GroundingChunks {
		switch {
		case chunk.RetrievedContext != nil:
			rc := chunk.RetrievedContext
			label := rc.Title
			if label == "" {
				label = rc.URI
			}
			if label == "" && rc.Text != "" {
				label = snippet(rc.Text, 80)
			}
			if label == "" {
				continue
			}
			list = append(list, model.Citation{DocumentID: rc.URI, Label: label})
		case chunk.Web != nil:
			label := chunk.Web.Title
			if label == "" {
				label = chunk.Web.URI
			}
			if label == "" {
				continue
			}
			list = append(list, model.Citation{DocumentID: chunk.Web.URI, Label: label})
		}
	}
	return list
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseState(raw string) model.DocumentStatus {
	switch strings.TrimPrefix(strings.ToUpper(raw), "STATE_") {
	case "ACTIVE":
		return model.StatusActive
	case "FAILED":
		return model.StatusFailed
	case "PENDING":
		return model.StatusPending
	default:
		return model.StatusPending
	}
}
