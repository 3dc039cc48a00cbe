package restapi

import (
	"encoding/json"
	"net/http"

	"github.com/airfrog/airfrog"
	"github.com/airfrog/airfrog/internal/target"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st target.Status
	s.rt.Submit(s.ctx, func(svc *target.Service) { st = svc.Status() })
	resp := statusResponse{
		Connected: st.Connected,
		Speed:     st.Speed.String(),
		AckOK:     st.Stats.OK,
		AckWait:   st.Stats.Wait,
		AckFault:  st.Stats.Fault,
	}
	if st.Connected {
		resp.IDCode = hexEncodeWord(st.IDCode)
		resp.MCULine = st.MCULine
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	var desc airfrog.TargetDescriptor
	var opErr error
	s.rt.Submit(s.ctx, func(svc *target.Service) { desc, opErr = svc.Details() })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, detailsResponse{
		IDCode:      hexEncodeWord(desc.IDCode),
		MCUFamily:   desc.MCUFamily.String(),
		MCULine:     desc.MCULine,
		DeviceID:    hexEncodeWord(uint32(desc.DeviceID)),
		Revision:    hexEncodeWord(uint32(desc.Revision)),
		FlashSizeKB: int(desc.FlashSizeKB),
		MemAPIDR:    hexEncodeWord(desc.MemAPIDR),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var opErr error
	s.rt.Submit(s.ctx, func(svc *target.Service) { _, opErr = svc.ResetTarget() })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleRawReset(w http.ResponseWriter, r *http.Request) {
	s.rt.Submit(s.ctx, func(svc *target.Service) { svc.RawReset() })
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleMemoryWord(w http.ResponseWriter, r *http.Request) {
	addr, err := hexDecodeWord(pathTail(r, "/api/v1/memory/"))
	if err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
		return
	}
	switch r.Method {
	case http.MethodGet:
		var v uint32
		opErr := s.submit(func(svc *target.Service) error {
			var err error
			v, err = svc.MemoryRead(addr)
			return err
		})
		if opErr != nil {
			writeError(w, opErr)
			return
		}
		writeJSON(w, http.StatusOK, memoryWordResponse{Data: hexEncodeWord(v)})
	case http.MethodPost:
		var req memoryWordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
			return
		}
		v, err := hexDecodeWord(req.Data)
		if err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
			return
		}
		opErr := s.submit(func(svc *target.Service) error { return svc.MemoryWrite(addr, v) })
		if opErr != nil {
			writeError(w, opErr)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	default:
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidMethod, r.Method))
	}
}

func (s *Server) handleMemoryBulk(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var req memoryBulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
			return
		}
		addr, err := hexDecodeWord(req.Addr)
		if err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
			return
		}
		var words []uint32
		opErr := s.submit(func(svc *target.Service) error {
			var err error
			words, err = svc.MemoryReadBulk(addr, req.N, target.RESTBulkLimit)
			return err
		})
		if opErr != nil {
			writeError(w, opErr)
			return
		}
		writeJSON(w, http.StatusOK, memoryBulkResponse{Data: hexEncodeWords(words)})
	case http.MethodPost:
		var req memoryBulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
			return
		}
		addr, err := hexDecodeWord(req.Addr)
		if err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
			return
		}
		words, err := hexDecodeWords(req.Data)
		if err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
			return
		}
		opErr := s.submit(func(svc *target.Service) error {
			return svc.MemoryWriteBulk(addr, words, target.RESTBulkLimit)
		})
		if opErr != nil {
			writeError(w, opErr)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	default:
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidMethod, r.Method))
	}
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	var summary airfrog.ErrorSummary
	opErr := s.submit(func(svc *target.Service) error {
		var err error
		summary, err = svc.ReadErrors()
		return err
	})
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, errorsResponse{
		STKErr:  summary.STKERR,
		STKCmp:  summary.STKCMP,
		WDErr:   summary.WDERR,
		OrunErr: summary.ORUNERR,
	})
}

func (s *Server) handleErrorsClear(w http.ResponseWriter, r *http.Request) {
	opErr := s.submit(func(svc *target.Service) error { return svc.ClearErrors() })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	var req clockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
		return
	}
	level, ok := levelFromName(req.Level)
	if !ok {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, req.Level))
		return
	}
	post := level
	if req.Post != "" {
		post, ok = levelFromName(req.Post)
		if !ok {
			writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, req.Post))
			return
		}
	}
	s.rt.Submit(s.ctx, func(svc *target.Service) { svc.RawClock(level, post, req.Cycles) })
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
		return
	}
	speed, ok := speedFromName(req.Speed)
	if !ok {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, req.Speed))
		return
	}
	opErr := s.submit(func(svc *target.Service) error { return svc.SetSpeed(speed) })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFlashUnlock(w http.ResponseWriter, r *http.Request) {
	opErr := s.submit(func(svc *target.Service) error { return svc.FlashUnlock() })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFlashLock(w http.ResponseWriter, r *http.Request) {
	opErr := s.submit(func(svc *target.Service) error { return svc.FlashLock() })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFlashEraseSector(w http.ResponseWriter, r *http.Request) {
	var req flashSectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
		return
	}
	opErr := s.submit(func(svc *target.Service) error { return svc.FlashEraseSector(uint8(req.Sector)) })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFlashEraseAll(w http.ResponseWriter, r *http.Request) {
	opErr := s.submit(func(svc *target.Service) error { return svc.FlashEraseAll() })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFlashProgram(w http.ResponseWriter, r *http.Request) {
	var req flashProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
		return
	}
	addr, err := hexDecodeWord(req.Addr)
	if err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
		return
	}
	v, err := hexDecodeWord(req.Data)
	if err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
		return
	}
	opErr := s.submit(func(svc *target.Service) error { return svc.FlashProgramWord(addr, v) })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleFlashProgramBulk(w http.ResponseWriter, r *http.Request) {
	var req flashProgramBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
		return
	}
	addr, err := hexDecodeWord(req.Addr)
	if err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
		return
	}
	words, err := hexDecodeWords(req.Data)
	if err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
		return
	}
	opErr := s.submit(func(svc *target.Service) error { return svc.FlashProgramBulk(addr, words) })
	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleDP(w http.ResponseWriter, r *http.Request) {
	reg, err := hexDecodeReg(pathTail(r, "/api/v1/dp/"))
	if err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
		return
	}
	switch r.Method {
	case http.MethodGet:
		var v uint32
		opErr := s.submit(func(svc *target.Service) error {
			var err error
			v, err = svc.RawDPRead(reg)
			return err
		})
		if opErr != nil {
			writeError(w, opErr)
			return
		}
		writeJSON(w, http.StatusOK, regResponse{Data: hexEncodeWord(v)})
	case http.MethodPost:
		var req regRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
			return
		}
		v, err := hexDecodeWord(req.Data)
		if err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
			return
		}
		opErr := s.submit(func(svc *target.Service) error { return svc.RawDPWrite(reg, v) })
		if opErr != nil {
			writeError(w, opErr)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	default:
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidMethod, r.Method))
	}
}

func (s *Server) handleAP(w http.ResponseWriter, r *http.Request) {
	reg, err := hexDecodeReg(pathTail(r, "/api/v1/ap/"))
	if err != nil {
		writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
		return
	}
	switch r.Method {
	case http.MethodGet:
		var v uint32
		opErr := s.submit(func(svc *target.Service) error {
			var err error
			v, err = svc.RawAPRead(reg)
			return err
		})
		if opErr != nil {
			writeError(w, opErr)
			return
		}
		writeJSON(w, http.StatusOK, regResponse{Data: hexEncodeWord(v)})
	case http.MethodPost:
		var req regRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidBody, err.Error()))
			return
		}
		v, err := hexDecodeWord(req.Data)
		if err != nil {
			writeError(w, airfrog.NewAPIError(airfrog.ErrBadRequest, err.Error()))
			return
		}
		opErr := s.submit(func(svc *target.Service) error { return svc.RawAPWrite(reg, v) })
		if opErr != nil {
			writeError(w, opErr)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	default:
		writeError(w, airfrog.NewAPIError(airfrog.ErrInvalidMethod, r.Method))
	}
}

func levelFromName(name string) (airfrog.Level, bool) {
	switch name {
	case "low":
		return airfrog.Low, true
	case "high":
		return airfrog.High, true
	case "input":
		return airfrog.Input, true
	default:
		return 0, false
	}
}

func speedFromName(name string) (airfrog.Speed, bool) {
	switch name {
	case "turbo":
		return airfrog.SpeedTurbo, true
	case "fast":
		return airfrog.SpeedFast, true
	case "medium":
		return airfrog.SpeedMedium, true
	case "slow":
		return airfrog.SpeedSlow, true
	default:
		return 0, false
	}
}
