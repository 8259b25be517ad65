package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moodreel/core/internal/metadataclient"
	"github.com/moodreel/core/internal/response"
)

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// searchCatalogue proxies a text query straight to the metadata provider.
func (s *Server) searchCatalogue(c *gin.Context) {
	contentType := c.DefaultQuery("content_type", "movie")
	query := c.Query("query")
	if query == "" {
		response.BadRequest(c, "query is required")
		return
	}
	env, err := s.metadata.Search(c.Request.Context(), contentType, query, pageParam(c))
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

// discoverCatalogue proxies the filtered discover() passthrough.
func (s *Server) discoverCatalogue(c *gin.Context) {
	contentType := c.DefaultQuery("content_type", "movie")
	filters := metadataclient.DiscoverFilters{
		WithGenres:            c.Query("with_genres"),
		PrimaryReleaseYear:    c.Query("primary_release_year"),
		FirstAirDateYear:      c.Query("first_air_date_year"),
		PrimaryReleaseDateGTE: c.Query("primary_release_date.gte"),
		FirstAirDateGTE:       c.Query("first_air_date.gte"),
		VoteAverageGTE:        c.Query("vote_average.gte"),
		SortBy:                c.Query("sort_by"),
	}
	env, err := s.metadata.Discover(c.Request.Context(), contentType, pageParam(c), filters)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

func (s *Server) catalogueItemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "id must be numeric")
		return 0, false
	}
	return id, true
}

// catalogueCredits proxies the cast/crew passthrough for a single title.
func (s *Server) catalogueCredits(c *gin.Context) {
	id, ok := s.catalogueItemID(c)
	if !ok {
		return
	}
	env, err := s.metadata.Credits(c.Request.Context(), c.Param("content_type"), id)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

// catalogueWatchProviders proxies the where-to-watch passthrough.
func (s *Server) catalogueWatchProviders(c *gin.Context) {
	id, ok := s.catalogueItemID(c)
	if !ok {
		return
	}
	env, err := s.metadata.WatchProviders(c.Request.Context(), c.Param("content_type"), id)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

// catalogueRecommendations proxies the provider's own "similar titles"
// passthrough, distinct from this engine's own recommendation modes.
func (s *Server) catalogueRecommendations(c *gin.Context) {
	id, ok := s.catalogueItemID(c)
	if !ok {
		return
	}
	env, err := s.metadata.Recommendations(c.Request.Context(), c.Param("content_type"), id)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}
