package rewriting

// criticalPair is a term with two different one-step reducts
type criticalPair struct {
	overlap MutableTerm
	path1   MutableTerm
	path2   MutableTerm
}

// ComputeConfluentCompletion runs the Knuth-Bendix procedure: every overlap
// between two active rules is reduced both ways, and a new rule is added when
// the results differ. It stops once a full pass over all rule pairs adds nothing.
//
// Each added rule is one step. Exceeding maxSteps yields MaxIterations, adding a
// rule whose lhs is longer than maxDepth yields MaxDepth.
func (s *System) ComputeConfluentCompletion(maxSteps, maxDepth int) (CompletionResult, int) {
	steps := 0
	for {
		added := false
		n := len(s.rules)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if s.rules[i].lhsSimplified || s.rules[j].lhsSimplified {
					continue
				}
				if !s.checked.Insert([2]int{i, j}) {
					continue
				}
				for _, cp := range s.criticalPairs(i, j) {
					rule, ok := s.resolve(cp)
					if !ok {
						continue
					}
					added = true
					steps++
					if steps > maxSteps {
						s.logger.Debug("completion exceeded step limit", "steps", steps)
						return MaxIterations, steps
					}
					if rule.LHS.Len() > maxDepth {
						s.logger.Debug("completion exceeded depth limit", "rule", rule.String())
						return MaxDepth, steps
					}
				}
			}
		}
		readded := s.interReduce()
		if readded > 0 {
			added = true
			steps += readded
			if steps > maxSteps {
				s.logger.Debug("inter-reduction exceeded step limit", "steps", steps)
				return MaxIterations, steps
			}
		}
		if !added {
			s.logger.Debug("completion done", "steps", steps, "rules", len(s.rules))
			return Success, steps
		}
	}
}

// criticalPairs returns the overlaps of rule i with rule j: either lhs j occurs
// inside lhs i, or a proper suffix of lhs i is a prefix of lhs j
func (s *System) criticalPairs(i, j int) []criticalPair {
	ri, rj := s.rules[i], s.rules[j]
	a, b := ri.LHS, rj.LHS
	var pairs []criticalPair

	if i != j {
		for k := 0; k+b.Len() <= a.Len(); k++ {
			if !a.matchesAt(k, b) {
				continue
			}
			path2 := a.Slice(0, k)
			path2.Append(rj.RHS)
			path2.Append(a.Slice(k+b.Len(), a.Len()))
			pairs = append(pairs, criticalPair{overlap: a.Clone(), path1: ri.RHS.Clone(), path2: path2})
		}
	}

	for ov := 1; ov < a.Len() && ov < b.Len(); ov++ {
		if !a.HasSuffix(b.Slice(0, ov)) {
			continue
		}
		rest := b.Slice(ov, b.Len())
		overlap := a.Clone()
		overlap.Append(rest)
		path1 := ri.RHS.Clone()
		path1.Append(rest)
		path2 := a.Slice(0, a.Len()-ov)
		path2.Append(rj.RHS)
		pairs = append(pairs, criticalPair{overlap: overlap, path1: path1, path2: path2})
	}
	return pairs
}

// resolve reduces both paths of cp and adds a rule when they do not meet
func (s *System) resolve(cp criticalPair) (*Rule, bool) {
	s.Simplify(&cp.path1)
	s.Simplify(&cp.path2)
	if s.recordLoops {
		s.loops = append(s.loops, Loop{Overlap: cp.overlap, Path1: cp.path1, Path2: cp.path2})
	}
	if cp.path1.Equal(cp.path2) {
		return nil, false
	}
	if !s.AddRule(cp.path1, cp.path2, CompletionOrigin) {
		return nil, false
	}
	return s.rules[len(s.rules)-1], true
}

// interReduce retires every rule whose lhs is reducible by another rule, re-adding
// the equation it stood for, then normalizes right hand sides.
// It returns the number of rules added.
func (s *System) interReduce() int {
	added := 0
	for idx := 0; idx < len(s.rules); idx++ {
		rule := s.rules[idx]
		if rule.lhsSimplified || !s.reducibleBy(rule.LHS, idx) {
			continue
		}
		s.retire(idx)
		if s.AddRule(rule.LHS, rule.RHS, rule.Origin) {
			added++
		}
	}
	for _, rule := range s.rules {
		if rule.lhsSimplified {
			continue
		}
		rhs := rule.RHS.Clone()
		if s.Simplify(&rhs) {
			rule.RHS = rhs
			rule.rhsSimplified = true
		}
	}
	return added
}
