package service

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"

	"github.com/vaultwatch/riskpulse/internal/model"
)

const notificationsIndex = "notifications"

// SearchService keeps a Meilisearch index of notifications so the dashboard
// can search message text. Entirely optional: the service runs without it.
type SearchService interface {
	IndexNotification(notification *model.Notification) error
	DeleteNotification(id string) error
	SearchNotifications(userID uuid.UUID, query string, limit int) ([]model.Notification, error)
}

type searchService struct {
	client meilisearch.ServiceManager
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &searchService{client: client}
	s.initIndexes()
	return s
}

func (s *searchService) initIndexes() {
	filterableAttrs := []string{"user_id", "type", "category"}
	filterableInterface := make([]any, len(filterableAttrs))
	for i, v := range filterableAttrs {
		filterableInterface[i] = v
	}
	if _, err := s.client.Index(notificationsIndex).UpdateFilterableAttributes(&filterableInterface); err != nil {
		log.Printf("search: failed to update filterable attributes: %v", err)
	}

	sortableAttrs := []string{"created_at"}
	if _, err := s.client.Index(notificationsIndex).UpdateSortableAttributes(&sortableAttrs); err != nil {
		log.Printf("search: failed to update sortable attributes: %v", err)
	}
}

func (s *searchService) IndexNotification(notification *model.Notification) error {
	doc := map[string]any{
		"id":         notification.ID.String(),
		"user_id":    notification.UserID.String(),
		"title":      notification.Title,
		"message":    notification.Message,
		"type":       notification.Type,
		"category":   notification.Category,
		"created_at": notification.CreatedAt.Unix(),
	}
	_, err := s.client.Index(notificationsIndex).AddDocuments([]map[string]any{doc}, strPtr("id"))
	return err
}

func strPtr(s string) *string { return &s }

func (s *searchService) DeleteNotification(id string) error {
	_, err := s.client.Index(notificationsIndex).DeleteDocument(id)
	return err
}

// SearchNotifications is always scoped to the caller: the filter keeps one
// user's messages out of another's results.
func (s *searchService) SearchNotifications(userID uuid.UUID, query string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	resp, err := s.client.Index(notificationsIndex).Search(query, &meilisearch.SearchRequest{
		Filter: fmt.Sprintf("user_id = %q", userID.String()),
		Limit:  int64(limit),
		Sort:   []string{"created_at:desc"},
	})
	if err != nil {
		return nil, err
	}

	results := make([]model.Notification, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc struct {
			ID       string `json:"id"`
			UserID   string `json:"user_id"`
			Title    string `json:"title"`
			Message  string `json:"message"`
			Type     string `json:"type"`
			Category string `json:"category"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			continue
		}
		results = append(results, model.Notification{
			ID:       id,
			UserID:   userID,
			Title:    doc.Title,
			Message:  doc.Message,
			Type:     doc.Type,
			Category: doc.Category,
		})
	}

	return results, nil
}
