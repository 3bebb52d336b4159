// species.go: catalog read endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Reefey/Backend-sub000/internal/datastore"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

const speciesListCacheKey = "species_list"

// SpeciesResponse is the JSON form of one catalog entry.
type SpeciesResponse struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	ScientificName string    `json:"scientificName,omitempty"`
	Category       string    `json:"category,omitempty"`
	Rarity         string    `json:"rarity,omitempty"`
	Danger         string    `json:"danger,omitempty"`
	Venomous       bool      `json:"venomous"`
	Description    string    `json:"description,omitempty"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newSpeciesResponse(sp *datastore.Species) SpeciesResponse {
	return SpeciesResponse{
		ID:             sp.ID,
		Name:           sp.Name,
		ScientificName: sp.ScientificName,
		Category:       sp.Category,
		Rarity:         sp.Rarity,
		Danger:         sp.Danger,
		Venomous:       sp.Venomous,
		Description:    sp.Description,
		ImageURL:       sp.ImageURL,
		CreatedAt:      sp.CreatedAt,
	}
}

func (c *Controller) initSpeciesRoutes() {
	c.Group.GET("/species", c.GetAllSpecies)
	c.Group.GET("/species/:id", c.GetSpecies)
}

// GetAllSpecies handles GET /api/v1/species. The catalog changes rarely, so
// the list is served from the response cache.
func (c *Controller) GetAllSpecies(ctx echo.Context) error {
	if cached, found := c.responseCache.Get(speciesListCacheKey); found {
		if resp, ok := cached.([]SpeciesResponse); ok {
			return ctx.JSON(http.StatusOK, resp)
		}
	}

	species, err := c.DS.GetAllSpecies()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list species", http.StatusInternalServerError)
	}

	resp := make([]SpeciesResponse, 0, len(species))
	for i := range species {
		resp = append(resp, newSpeciesResponse(&species[i]))
	}
	c.responseCache.SetDefault(speciesListCacheKey, resp)

	return ctx.JSON(http.StatusOK, resp)
}

// GetSpecies handles GET /api/v1/species/:id.
func (c *Controller) GetSpecies(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid species ID", http.StatusBadRequest)
	}

	sp, err := c.DS.GetSpeciesByID(id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Species not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get species", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, newSpeciesResponse(sp))
}
