package rtcore

import "unsafe"

// Intersect1 finds the nearest hit of a single ray. The ray must be 16 byte
// aligned; rays created by NewRay always are.
func (t *Thread) Intersect1(h Scene, r *Ray) {
	t.query("Intersect1", false, W1, nil, h, r, nil)
}

// Occluded1 tests a single ray for any hit. On a hit GeomID is set to 0;
// nothing else is written.
func (t *Thread) Occluded1(h Scene, r *Ray) {
	t.query("Occluded1", true, W1, nil, h, r, nil)
}

func (t *Thread) Intersect4(valid []int32, h Scene, p *RayPacket) {
	t.query("Intersect4", false, W4, valid, h, nil, p)
}

func (t *Thread) Intersect8(valid []int32, h Scene, p *RayPacket) {
	t.query("Intersect8", false, W8, valid, h, nil, p)
}

func (t *Thread) Intersect16(valid []int32, h Scene, p *RayPacket) {
	t.query("Intersect16", false, W16, valid, h, nil, p)
}

func (t *Thread) Occluded4(valid []int32, h Scene, p *RayPacket) {
	t.query("Occluded4", true, W4, valid, h, nil, p)
}

func (t *Thread) Occluded8(valid []int32, h Scene, p *RayPacket) {
	t.query("Occluded8", true, W8, valid, h, nil, p)
}

func (t *Thread) Occluded16(valid []int32, h Scene, p *RayPacket) {
	t.query("Occluded16", true, W16, valid, h, nil, p)
}

// IntersectN runs a packet intersect query of width w. Lanes whose valid
// entry is -1 are active; inactive lanes are never read or written.
func (t *Thread) IntersectN(w Width, valid []int32, h Scene, p *RayPacket) {
	t.query("IntersectN", false, w, valid, h, nil, p)
}

// OccludedN runs a packet occlusion query of width w.
func (t *Thread) OccludedN(w Width, valid []int32, h Scene, p *RayPacket) {
	t.query("OccludedN", true, w, valid, h, nil, p)
}

// The active lanes of a query, at most W16 of them.
type laneSet struct {
	idx [W16]int
	n   int
}

func (l *laneSet) add(lane int) {
	l.idx[l.n] = lane
	l.n++
}

func loadLane(single *Ray, packet *RayPacket, lane int) Ray {
	if single != nil {
		return *single
	}
	return packet.Ray(lane)
}

func storeLane(single *Ray, packet *RayPacket, lane int, r Ray) {
	if single != nil {
		*single = r
		return
	}
	packet.SetRay(lane, r)
}

func (t *Thread) query(op string, occluded bool, w Width, valid []int32, h Scene, single *Ray, packet *RayPacket) {
	do(t, op, func(c *apiCall) error {
		s, err := lookupScene(h)
		if err != nil {
			return err
		}
		c.use(s.dev)

		var lanes laneSet
		if err = s.validateQuery(w, valid, single, packet, &lanes); err != nil {
			return err
		}
		active := lanes.idx[:lanes.n]

		kind := intersectKind
		if occluded {
			kind = occludedKind
		}
		if s.dev.cfg.stats {
			s.dev.stats.record(kind, w, len(active))
		}

		collector := s.dev.rayCollector()
		var ev TraceEvent
		if collector != nil {
			ev = TraceEvent{DeviceID: s.dev.id, Kind: kind, Width: w, Lanes: append([]int(nil), active...)}
			for _, lane := range active {
				ev.Before = append(ev.Before, loadLane(single, packet, lane))
			}
		}

		accel := s.eng.Accel()
		for _, lane := range active {
			r := loadLane(single, packet, lane)
			if occluded {
				if accel.Occluded(&r, w) {
					r.GeomID = 0
					storeLane(single, packet, lane, r)
				}
				continue
			}
			r.ResetHit()
			accel.Intersect(&r, w)
			storeLane(single, packet, lane, r)
		}

		if collector != nil {
			for _, lane := range active {
				ev.After = append(ev.After, loadLane(single, packet, lane))
			}
			collector.CollectRays(ev)
		}
		return nil
	})
}

// Check a query against the device capabilities and the scene flags and
// collect the active lanes. Alignment, mask contents and the commit state
// are only checked in verifying builds.
func (s *scene) validateQuery(w Width, valid []int32, single *Ray, packet *RayPacket, lanes *laneSet) error {
	if !w.Valid() {
		return errorf(InvalidOperation, "unsupported packet width %d", int(w))
	}
	if w > s.dev.cfg.width {
		return errorf(InvalidOperation, "packet width %d exceeds the device maximum of %d", int(w), int(s.dev.cfg.width))
	}
	if !s.aflags.allows(w) {
		return errorf(InvalidOperation, "scene was not created for %d-wide queries", int(w))
	}

	if single == nil {
		if packet == nil {
			return errorf(InvalidArgument, "invalid argument: nil ray")
		}
		if packet.Width() != w || !packet.Complete() {
			return errorf(InvalidArgument, "invalid argument: packet does not hold %d lanes", int(w))
		}
		if len(valid) < int(w) {
			return errorf(InvalidArgument, "invalid argument: valid mask holds %d of %d lanes", len(valid), int(w))
		}
	}

	if verifyBuild {
		if err := s.verifyQuery(w, valid, single, packet); err != nil {
			return err
		}
	}

	if single != nil {
		lanes.add(0)
		return nil
	}
	for lane := 0; lane < int(w); lane++ {
		if valid[lane] == -1 {
			lanes.add(lane)
		}
	}
	return nil
}

func (s *scene) verifyQuery(w Width, valid []int32, single *Ray, packet *RayPacket) error {
	if state := s.currentState(); state != Committed {
		return errorf(InvalidOperation, "scene is not committed (%s)", state)
	}

	align := w.Alignment()
	if single != nil {
		if uintptr(unsafe.Pointer(single))%align != 0 {
			return errorf(InvalidArgument, "invalid argument: ray is not %d byte aligned", align)
		}
		return nil
	}

	if packet.Base()%align != 0 {
		return errorf(InvalidArgument, "invalid argument: ray packet is not %d byte aligned", align)
	}
	if uintptr(unsafe.Pointer(&valid[0]))%align != 0 {
		return errorf(InvalidArgument, "invalid argument: valid mask is not %d byte aligned", align)
	}
	for lane, v := range valid[:int(w)] {
		if v != 0 && v != -1 {
			return errorf(InvalidArgument, "invalid argument: valid mask lane %d is %#x", lane, uint32(v))
		}
	}
	return nil
}
