package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/courtside/courtside/internal/httputil"
	"github.com/courtside/courtside/internal/schedule"
	"github.com/courtside/courtside/internal/service"
	"github.com/courtside/courtside/internal/store"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func newRouter(database *sqlx.DB) http.Handler {
	slotStore := store.NewSlotStore(database)
	matchStore := store.NewMatchStore(database)
	tournamentStore := store.NewTournamentStore(database)
	refereeStore := store.NewRefereeStore(database)

	slotService := service.NewSlotService(database, slotStore, matchStore, tournamentStore, refereeStore)
	refereeService := service.NewRefereeService(database, refereeStore, matchStore, slotStore)
	tournamentService := service.NewTournamentService(database, tournamentStore, matchStore)
	matchService := service.NewMatchService(database, matchStore, tournamentStore, slotStore)
	optimizer := service.NewOptimizer(database, slotStore, matchStore, refereeStore)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name   string   `json:"name"`
			Courts []string `json:"courts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.BadRequest(w, "Invalid request body", err)
			return
		}

		data, err := tournamentService.CreateTournament(r.Context(), body.Name, body.Courts)
		if err != nil {
			httputil.EngineError(w, "Failed to create tournament", err)
			return
		}
		httputil.JSON(w, http.StatusCreated, data)
	})

	r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			data, err := tournamentService.GetTournamentData(r.Context(), tournamentID)
			if err != nil {
				httputil.EngineError(w, "Failed to get tournament", err)
				return
			}
			httputil.JSON(w, http.StatusOK, data)
		})

		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			if err := tournamentService.DeleteTournament(r.Context(), tournamentID); err != nil {
				httputil.EngineError(w, "Failed to delete tournament", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/courts", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			var body struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			court, err := tournamentService.AddCourt(r.Context(), tournamentID, body.Name)
			if err != nil {
				httputil.EngineError(w, "Failed to add court", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, court)
		})

		r.Post("/matches", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			var body service.MatchInput
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			match, err := matchService.CreateMatch(r.Context(), tournamentID, body)
			if err != nil {
				httputil.EngineError(w, "Failed to create match", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, match)
		})

		r.Get("/matches", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			matches, err := matchService.ListMatches(r.Context(), tournamentID)
			if err != nil {
				httputil.EngineError(w, "Failed to list matches", err)
				return
			}
			httputil.JSON(w, http.StatusOK, matches)
		})

		r.Post("/slots/bulk", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}

			var body bulkSlotRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			result, err := slotService.GenerateSlots(r.Context(), tournamentID, body.toSpec())
			if err != nil {
				httputil.EngineError(w, "Failed to generate slots", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, result)
		})

		r.Post("/slots", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}

			var body struct {
				CourtID     uuid.UUID `json:"court_id"`
				StartTime   time.Time `json:"start_time"`
				EndTime     time.Time `json:"end_time"`
				IsAvailable *bool     `json:"is_available"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			available := body.IsAvailable == nil || *body.IsAvailable

			slot, err := slotService.CreateSlot(r.Context(), tournamentID, body.CourtID, body.StartTime, body.EndTime, available)
			if err != nil {
				httputil.EngineError(w, "Failed to create slot", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, slot)
		})

		r.Get("/slots", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}

			if r.URL.Query().Get("with_matches") == "true" {
				date, err := timeQuery(r, "date")
				if err != nil {
					httputil.BadRequest(w, "Invalid date filter", err)
					return
				}
				slots, err := slotService.ListSlotsWithMatches(r.Context(), tournamentID, date)
				if err != nil {
					httputil.EngineError(w, "Failed to list slots", err)
					return
				}
				httputil.JSON(w, http.StatusOK, slots)
				return
			}

			filter, err := slotFilterFromQuery(r)
			if err != nil {
				httputil.BadRequest(w, "Invalid slot filter", err)
				return
			}
			slots, err := slotService.ListSlots(r.Context(), tournamentID, filter)
			if err != nil {
				httputil.EngineError(w, "Failed to list slots", err)
				return
			}
			httputil.JSON(w, http.StatusOK, slots)
		})

		r.Get("/slots/next", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}

			var courtID *uuid.UUID
			if raw := r.URL.Query().Get("court_id"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					httputil.BadRequest(w, "Invalid court ID", err)
					return
				}
				courtID = &id
			}
			after, err := timeQuery(r, "after")
			if err != nil {
				httputil.BadRequest(w, "Invalid after filter", err)
				return
			}

			slot, err := slotService.NextAvailableSlot(r.Context(), tournamentID, courtID, after)
			if err != nil {
				httputil.EngineError(w, "No available slot", err)
				return
			}
			httputil.JSON(w, http.StatusOK, slot)
		})

		r.Get("/schedule", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			date, err := timeQuery(r, "date")
			if err != nil {
				httputil.BadRequest(w, "Invalid date filter", err)
				return
			}
			if date == nil {
				now := time.Now().UTC()
				date = &now
			}

			report, err := slotService.ScheduleAvailabilityForDate(r.Context(), tournamentID, *date)
			if err != nil {
				httputil.EngineError(w, "Failed to build schedule summary", err)
				return
			}
			httputil.JSON(w, http.StatusOK, report)
		})

		r.Post("/matches/reschedule", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}

			var body struct {
				OldCourtID  uuid.UUID `json:"old_court_id"`
				OldPosition int       `json:"old_position"`
				NewCourtID  uuid.UUID `json:"new_court_id"`
				NewPosition int       `json:"new_position"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			slot, err := slotService.RescheduleMatch(r.Context(), tournamentID,
				body.OldCourtID, body.OldPosition, body.NewCourtID, body.NewPosition)
			if err != nil {
				httputil.EngineError(w, "Failed to reschedule match", err)
				return
			}
			httputil.JSON(w, http.StatusOK, slot)
		})

		r.Get("/referees", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			roster, err := refereeService.TournamentReferees(r.Context(), tournamentID)
			if err != nil {
				httputil.EngineError(w, "Failed to list tournament referees", err)
				return
			}
			httputil.JSON(w, http.StatusOK, roster)
		})

		r.Put("/referees/{refereeID}/availability", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			refereeID, ok := uuidParam(w, r, "refereeID")
			if !ok {
				return
			}

			var body service.AvailabilityInput
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			record, err := refereeService.UpsertAvailability(r.Context(), tournamentID, refereeID, body)
			if err != nil {
				httputil.EngineError(w, "Failed to upsert availability", err)
				return
			}
			httputil.JSON(w, http.StatusOK, record)
		})

		r.Get("/referees/available", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}

			start, err := timeQuery(r, "start")
			if err != nil || start == nil {
				httputil.BadRequest(w, "start query parameter is required (RFC 3339)", err)
				return
			}
			end, err := timeQuery(r, "end")
			if err != nil || end == nil {
				httputil.BadRequest(w, "end query parameter is required (RFC 3339)", err)
				return
			}
			window, err := schedule.NewInterval(*start, *end)
			if err != nil {
				httputil.EngineError(w, "Invalid window", err)
				return
			}

			referees, err := refereeService.CheckAvailability(r.Context(), tournamentID, window)
			if err != nil {
				httputil.EngineError(w, "Failed to check availability", err)
				return
			}
			httputil.JSON(w, http.StatusOK, referees)
		})

		r.Get("/referees/{refereeID}/conflicts", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}
			refereeID, ok := uuidParam(w, r, "refereeID")
			if !ok {
				return
			}
			date, err := timeQuery(r, "date")
			if err != nil {
				httputil.BadRequest(w, "Invalid date filter", err)
				return
			}
			if date == nil {
				now := time.Now().UTC()
				date = &now
			}

			conflicts, err := refereeService.RefereeConflicts(r.Context(), refereeID, tournamentID, *date)
			if err != nil {
				httputil.EngineError(w, "Failed to list conflicts", err)
				return
			}
			httputil.JSON(w, http.StatusOK, conflicts)
		})

		r.Post("/optimize", func(w http.ResponseWriter, r *http.Request) {
			tournamentID, ok := uuidParam(w, r, "tournamentID")
			if !ok {
				return
			}

			var body struct {
				Objective   service.Objective   `json:"objective"`
				Constraints service.Constraints `json:"constraints"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			result, err := optimizer.Optimize(r.Context(), tournamentID, body.Objective, body.Constraints)
			if err != nil {
				httputil.EngineError(w, "Failed to optimize schedule", err)
				return
			}
			httputil.JSON(w, http.StatusOK, result)
		})
	})

	r.Route("/slots/{slotID}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			slotID, ok := uuidParam(w, r, "slotID")
			if !ok {
				return
			}
			slot, err := slotService.GetSlot(r.Context(), slotID)
			if err != nil {
				httputil.EngineError(w, "Failed to get slot", err)
				return
			}
			httputil.JSON(w, http.StatusOK, slot)
		})

		r.Put("/", func(w http.ResponseWriter, r *http.Request) {
			slotID, ok := uuidParam(w, r, "slotID")
			if !ok {
				return
			}

			var body struct {
				IsAvailable bool `json:"is_available"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			slot, err := slotService.SetSlotAvailability(r.Context(), slotID, body.IsAvailable)
			if err != nil {
				httputil.EngineError(w, "Failed to update slot", err)
				return
			}
			httputil.JSON(w, http.StatusOK, slot)
		})

		r.Post("/assign", func(w http.ResponseWriter, r *http.Request) {
			slotID, ok := uuidParam(w, r, "slotID")
			if !ok {
				return
			}

			var body struct {
				MatchID uuid.UUID `json:"match_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			slot, err := slotService.AssignMatchToSlot(r.Context(), slotID, body.MatchID)
			if err != nil {
				httputil.EngineError(w, "Failed to assign match", err)
				return
			}
			httputil.JSON(w, http.StatusOK, slot)
		})

		r.Post("/release", func(w http.ResponseWriter, r *http.Request) {
			slotID, ok := uuidParam(w, r, "slotID")
			if !ok {
				return
			}

			slot, err := slotService.ReleaseSlot(r.Context(), slotID)
			if err != nil {
				httputil.EngineError(w, "Failed to release slot", err)
				return
			}
			httputil.JSON(w, http.StatusOK, slot)
		})

		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			slotID, ok := uuidParam(w, r, "slotID")
			if !ok {
				return
			}

			if err := slotService.DeleteSlot(r.Context(), slotID); err != nil {
				httputil.EngineError(w, "Failed to delete slot", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/referees", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var body service.RefereeInput
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}

			referee, err := refereeService.CreateReferee(r.Context(), body)
			if err != nil {
				httputil.EngineError(w, "Failed to create referee", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, referee)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			activeOnly := r.URL.Query().Get("active") == "true"
			referees, err := refereeService.ListReferees(r.Context(), activeOnly)
			if err != nil {
				httputil.EngineError(w, "Failed to list referees", err)
				return
			}
			httputil.JSON(w, http.StatusOK, referees)
		})

		r.Get("/{refereeID}", func(w http.ResponseWriter, r *http.Request) {
			refereeID, ok := uuidParam(w, r, "refereeID")
			if !ok {
				return
			}
			referee, err := refereeService.GetReferee(r.Context(), refereeID)
			if err != nil {
				httputil.EngineError(w, "Failed to get referee", err)
				return
			}
			httputil.JSON(w, http.StatusOK, referee)
		})

		r.Put("/{refereeID}", func(w http.ResponseWriter, r *http.Request) {
			refereeID, ok := uuidParam(w, r, "refereeID")
			if !ok {
				return
			}
			var body service.RefereeInput
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			referee, err := refereeService.UpdateReferee(r.Context(), refereeID, body)
			if err != nil {
				httputil.EngineError(w, "Failed to update referee", err)
				return
			}
			httputil.JSON(w, http.StatusOK, referee)
		})

		r.Delete("/{refereeID}", func(w http.ResponseWriter, r *http.Request) {
			refereeID, ok := uuidParam(w, r, "refereeID")
			if !ok {
				return
			}
			if err := refereeService.DeleteReferee(r.Context(), refereeID); err != nil {
				httputil.EngineError(w, "Failed to delete referee", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Put("/courts/{courtID}", func(w http.ResponseWriter, r *http.Request) {
		courtID, ok := uuidParam(w, r, "courtID")
		if !ok {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httputil.BadRequest(w, "Invalid request body", err)
			return
		}
		if err := tournamentService.RenameCourt(r.Context(), courtID, body.Name); err != nil {
			httputil.EngineError(w, "Failed to rename court", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/matches/{matchID}", func(w http.ResponseWriter, r *http.Request) {
		matchID, ok := uuidParam(w, r, "matchID")
		if !ok {
			return
		}
		match, err := matchService.GetMatchWithSlot(r.Context(), matchID)
		if err != nil {
			httputil.EngineError(w, "Failed to get match", err)
			return
		}
		httputil.JSON(w, http.StatusOK, match)
	})

	r.Route("/matches/{matchID}/referees", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			matchID, ok := uuidParam(w, r, "matchID")
			if !ok {
				return
			}

			var body struct {
				RefereeID uuid.UUID     `json:"referee_id"`
				Role      schedule.Role `json:"role"`
				Confirmed bool          `json:"confirmed"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				httputil.BadRequest(w, "Invalid request body", err)
				return
			}
			if body.Role == "" {
				body.Role = schedule.RoleMain
			}

			assignment, err := refereeService.AssignReferee(r.Context(), matchID, body.RefereeID, body.Role, body.Confirmed)
			if err != nil {
				httputil.EngineError(w, "Failed to assign referee", err)
				return
			}
			httputil.JSON(w, http.StatusCreated, assignment)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			matchID, ok := uuidParam(w, r, "matchID")
			if !ok {
				return
			}
			assignments, err := refereeService.ListMatchReferees(r.Context(), matchID)
			if err != nil {
				httputil.EngineError(w, "Failed to list match referees", err)
				return
			}
			httputil.JSON(w, http.StatusOK, assignments)
		})

		r.Delete("/{refereeID}", func(w http.ResponseWriter, r *http.Request) {
			matchID, ok := uuidParam(w, r, "matchID")
			if !ok {
				return
			}
			refereeID, ok := uuidParam(w, r, "refereeID")
			if !ok {
				return
			}
			role := roleQuery(r)

			if err := refereeService.RemoveReferee(r.Context(), matchID, refereeID, role); err != nil {
				httputil.EngineError(w, "Failed to remove referee", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/{refereeID}/confirm", func(w http.ResponseWriter, r *http.Request) {
			matchID, ok := uuidParam(w, r, "matchID")
			if !ok {
				return
			}
			refereeID, ok := uuidParam(w, r, "refereeID")
			if !ok {
				return
			}
			role := roleQuery(r)

			if err := refereeService.ConfirmAssignment(r.Context(), matchID, refereeID, role); err != nil {
				httputil.EngineError(w, "Failed to confirm assignment", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

type bulkSlotRequest struct {
	CourtIDs             []uuid.UUID `json:"court_ids"`
	StartDate            time.Time   `json:"start_date"`
	EndDate              time.Time   `json:"end_date"`
	SlotDurationMinutes  int         `json:"slot_duration_minutes"`
	BreakDurationMinutes int         `json:"break_duration_minutes"`
	DailyStartTime       string      `json:"daily_start_time"`
	DailyEndTime         string      `json:"daily_end_time"`
	ExcludedWeekdays     []int       `json:"excluded_weekdays"`
}

func (b bulkSlotRequest) toSpec() schedule.BulkSlotSpec {
	return schedule.BulkSlotSpec{
		CourtIDs:         b.CourtIDs,
		StartDate:        b.StartDate,
		EndDate:          b.EndDate,
		SlotDuration:     time.Duration(b.SlotDurationMinutes) * time.Minute,
		BreakDuration:    time.Duration(b.BreakDurationMinutes) * time.Minute,
		DailyStartTime:   b.DailyStartTime,
		DailyEndTime:     b.DailyEndTime,
		ExcludedWeekdays: b.ExcludedWeekdays,
	}
}

func slotFilterFromQuery(r *http.Request) (store.SlotFilter, error) {
	var filter store.SlotFilter
	if raw := r.URL.Query().Get("court_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.CourtID = &id
	}
	date, err := timeQuery(r, "date")
	if err != nil {
		return filter, err
	}
	filter.Date = date
	filter.OnlyAvailable = r.URL.Query().Get("only_available") == "true"
	return filter, nil
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func timeQuery(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func roleQuery(r *http.Request) schedule.Role {
	if raw := r.URL.Query().Get("role"); raw != "" {
		return schedule.Role(raw)
	}
	return schedule.RoleMain
}
