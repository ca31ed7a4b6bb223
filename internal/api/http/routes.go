package httpapi

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/uvsolutions/irrigation-advisor/internal/advisor"
	"github.com/uvsolutions/irrigation-advisor/internal/station"
	"github.com/uvsolutions/irrigation-advisor/internal/store"
	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

var validate = validator.New()

// Handlers carries the collaborators the HTTP layer exposes.
type Handlers struct {
	Store    *store.FileStore
	Advisor  *advisor.Service
	Cache    *weather.Cache
	Stations *station.Directory
	Resolver *station.Resolver
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h Handlers) {
	v1 := app.Group("/api/v1")

	v1.Get("/sites", func(c *fiber.Ctx) error {
		return c.JSON(h.Store.Sites())
	})

	v1.Post("/sites", func(c *fiber.Ctx) error {
		site, err := parseSiteBody(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		created, err := h.Store.CreateSite(site)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save site")
		}
		h.assignGeocodedStation(created)

		return c.Status(fiber.StatusCreated).JSON(created)
	})

	v1.Get("/sites/:id", func(c *fiber.Ctx) error {
		site, err := h.Store.Site(c.Params("id"))
		if err != nil {
			return siteError(err)
		}
		return c.JSON(site)
	})

	v1.Put("/sites/:id", func(c *fiber.Ctx) error {
		payload, err := parseSiteBody(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		updated, err := h.Store.UpdateSite(c.Params("id"), func(site *advisor.Site) {
			site.Name = payload.Name
			site.Address = payload.Address
			site.SoilType = payload.SoilType
			site.Maturity = payload.Maturity
			site.Trees = payload.Trees
			site.TreesLitres = payload.TreesLitres
			site.Tubestock = payload.Tubestock
			site.TubestockLitres = payload.TubestockLitres
			site.TurfM2 = payload.TurfM2
			site.TurfLitres = payload.TurfLitres
		})
		if err != nil {
			return siteError(err)
		}
		return c.JSON(updated)
	})

	v1.Delete("/sites/:id", func(c *fiber.Ctx) error {
		site, err := h.Store.Site(c.Params("id"))
		if err != nil {
			return siteError(err)
		}
		if err := h.Store.DeleteSite(site.ID); err != nil {
			return siteError(err)
		}
		h.Stations.Remove(site.Name)
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Post("/sites/:id/visits", func(c *fiber.Ctx) error {
		var visit advisor.Visit
		if err := c.BodyParser(&visit); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(visit); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		site, err := h.Store.AppendVisit(c.Params("id"), visit)
		if err != nil {
			return siteError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(site)
	})

	v1.Get("/sites/:id/recommendation", func(c *fiber.Ctx) error {
		site, err := h.Store.Site(c.Params("id"))
		if err != nil {
			return siteError(err)
		}

		report := h.Advisor.ForSite(c.Context(), site, h.Store.Thresholds(), time.Now())
		return c.JSON(report)
	})

	v1.Get("/recommendations", func(c *fiber.Ctx) error {
		sites := h.Store.Sites()
		reports := h.Advisor.ForAll(c.Context(), sites, h.Store.Thresholds(), time.Now())

		return c.JSON(fiber.Map{
			"generated_at": time.Now().UTC(),
			"count":        len(reports),
			"reports":      reports,
		})
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		req := forecastQuery{
			Days:   c.QueryInt("days", 7),
			SiteID: c.Query("site_id"),
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		st := h.Stations.Default()
		if req.SiteID != "" {
			site, err := h.Store.Site(req.SiteID)
			if err != nil {
				return siteError(err)
			}
			st = h.Stations.ForSite(site.Name)
		}

		days, err := h.Cache.Forecast(c.Context(), st.Coordinate(), time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "forecast unavailable")
		}
		if len(days) > req.Days {
			days = days[:req.Days]
		}

		return c.JSON(fiber.Map{
			"station": st,
			"days":    days,
		})
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		st := h.Stations.Default()
		snap, usedFallback := h.Cache.Snapshot(c.Context(), st.Name, st.Coordinate(), time.Now())

		return c.JSON(fiber.Map{
			"station":       st,
			"weather":       snap,
			"used_fallback": usedFallback,
		})
	})

	v1.Post("/weather/refresh", func(c *fiber.Ctx) error {
		h.Cache.Invalidate()

		st := h.Stations.Default()
		snap, err := h.Cache.RefreshFallback(c.Context(), st.Coordinate(), time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "weather refresh failed: "+err.Error())
		}
		if err := h.Store.SetFallbackSnapshot(snap); err != nil {
			log.Printf("WARN: persist refreshed snapshot: %v", err)
		}

		return c.JSON(fiber.Map{
			"message": "Successfully fetched weather data",
			"weather": snap,
		})
	})

	v1.Get("/thresholds", func(c *fiber.Ctx) error {
		return c.JSON(h.Store.Thresholds())
	})

	v1.Put("/thresholds", func(c *fiber.Ctx) error {
		var t advisor.Thresholds
		if err := c.BodyParser(&t); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(t); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := h.Store.SetThresholds(t); err != nil {
			if errors.Is(err, store.ErrThresholdOrder) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save thresholds")
		}
		return c.JSON(t)
	})
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	Days   int `validate:"min=1,max=7"`
	SiteID string
}

// parseSiteBody decodes and validates a site payload. The id and visit
// history are never taken from the body.
func parseSiteBody(c *fiber.Ctx) (advisor.Site, error) {
	var site advisor.Site
	if err := c.BodyParser(&site); err != nil {
		return site, err
	}
	site.ID = ""
	site.Visits = nil

	if err := validate.Struct(site); err != nil {
		return site, err
	}
	return site, nil
}

// assignGeocodedStation points a freshly registered site at a station
// derived from its street address, when geocoding is configured.
func (h Handlers) assignGeocodedStation(site *advisor.Site) {
	if h.Resolver == nil || !h.Resolver.Enabled() || site.Address == "" {
		return
	}

	coord, err := h.Resolver.Resolve(site.Address)
	if err != nil {
		log.Printf("WARN: geocoding failed for site %s: %v", site.Name, err)
		return
	}

	h.Stations.Assign(site.Name, station.Station{
		Name: site.Name + " (geocoded)",
		Lat:  coord.Latitude,
		Lon:  coord.Longitude,
	})
	log.Printf("INFO: site %s assigned geocoded station at %s", site.Name, coord.Bucket())
}

func siteError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "site not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "site operation failed")
}
