package federationsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/osmaa/takahe/internal/actors"
	"github.com/osmaa/takahe/internal/dal/interfaces/iblockrepo"
	"github.com/osmaa/takahe/internal/dal/interfaces/ifollowrepo"
	"github.com/osmaa/takahe/internal/dal/interfaces/iidentityrepo"
	"github.com/osmaa/takahe/internal/dal/interfaces/iinteractionrepo"
	"github.com/osmaa/takahe/internal/dal/interfaces/ipostrepo"
	"github.com/osmaa/takahe/internal/dal/interfaces/ireportrepo"
	"github.com/osmaa/takahe/internal/dal/interfaces/itimelinerepo"
	"github.com/osmaa/takahe/internal/events"
	"github.com/osmaa/takahe/internal/federation"
)

// FederationService applies remote activities to local state. Its methods
// are the domain half of the inbox dispatch table: they validate the
// activity semantically, mutate the relevant store and emit a stream event.
type FederationService struct {
	followRepo      ifollowrepo.IFollowRepository
	blockRepo       iblockrepo.IBlockRepository
	postRepo        ipostrepo.IPostRepository
	interactionRepo iinteractionrepo.IInteractionRepository
	identityRepo    iidentityrepo.IIdentityRepository
	reportRepo      ireportrepo.IReportRepository
	timelineRepo    itimelinerepo.ITimelineRepository

	resolver  actors.Resolver
	publisher *events.Publisher

	httpClient *http.Client
}

type option func(*FederationService)

// MustNewFederationService creates a new FederationService.
func MustNewFederationService(opts ...option) *FederationService {
	service := &FederationService{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(service)
	}

	if service.followRepo == nil ||
		service.blockRepo == nil ||
		service.postRepo == nil ||
		service.interactionRepo == nil ||
		service.identityRepo == nil ||
		service.reportRepo == nil ||
		service.timelineRepo == nil {
		panic("FederationService requires all repositories")
	}

	return service
}

func WithFollowRepository(repo ifollowrepo.IFollowRepository) option {
	return func(s *FederationService) { s.followRepo = repo }
}

func WithBlockRepository(repo iblockrepo.IBlockRepository) option {
	return func(s *FederationService) { s.blockRepo = repo }
}

func WithPostRepository(repo ipostrepo.IPostRepository) option {
	return func(s *FederationService) { s.postRepo = repo }
}

func WithInteractionRepository(repo iinteractionrepo.IInteractionRepository) option {
	return func(s *FederationService) { s.interactionRepo = repo }
}

func WithIdentityRepository(repo iidentityrepo.IIdentityRepository) option {
	return func(s *FederationService) { s.identityRepo = repo }
}

func WithReportRepository(repo ireportrepo.IReportRepository) option {
	return func(s *FederationService) { s.reportRepo = repo }
}

func WithTimelineRepository(repo itimelinerepo.ITimelineRepository) option {
	return func(s *FederationService) { s.timelineRepo = repo }
}

func WithActorResolver(resolver actors.Resolver) option {
	return func(s *FederationService) { s.resolver = resolver }
}

func WithEventPublisher(publisher *events.Publisher) option {
	return func(s *FederationService) { s.publisher = publisher }
}

func WithHTTPClient(client *http.Client) option {
	return func(s *FederationService) { s.httpClient = client }
}

// actorString extracts the activity's actor as a URI. ActivityPub permits
// an inlined actor object; its id counts.
func actorString(payload map[string]any) (string, error) {
	switch actor := payload["actor"].(type) {
	case string:
		if actor != "" {
			return actor, nil
		}
	case map[string]any:
		if id, ok := actor["id"].(string); ok && id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: activity has no actor", federation.ErrFormat)
}

// objectURI extracts the activity's object as a URI, accepting either a
// plain string or an inlined object with an id.
func objectURI(payload map[string]any) (string, error) {
	switch object := payload["object"].(type) {
	case string:
		if object != "" {
			return object, nil
		}
	case map[string]any:
		if id, ok := object["id"].(string); ok && id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: activity has no object", federation.ErrFormat)
}

// fetchAuthor resolves and fetches an unknown author so their identity row
// carries a real profile and key. The resolver persists what it fetches.
func (s *FederationService) fetchAuthor(ctx context.Context, authorURI string) error {
	if s.resolver == nil {
		return fmt.Errorf("no resolver configured")
	}

	actor, err := s.resolver.Resolve(ctx, authorURI, true, false)
	if err != nil {
		return err
	}

	return s.resolver.Fetch(ctx, actor)
}

// fetchDocument retrieves a remote ActivityPub document.
func (s *FederationService) fetchDocument(ctx context.Context, uri string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build document request: %w", err)
	}
	req.Header.Set("Accept", `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"%w: document %s returned status %d", federation.ErrProtocol, uri, resp.StatusCode,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var document map[string]any
	if err := json.Unmarshal(body, &document); err != nil {
		return nil, fmt.Errorf("%w: document %s is not json", federation.ErrFormat, uri)
	}

	return document, nil
}
