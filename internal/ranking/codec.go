package ranking

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The text layout follows the LightGBM model file so artifacts produced by an external
// LightGBM job load the same way as locally trained ones. Only numerical splits are supported.

const endOfTrees = "end of trees"

// decisionType 2 is a numerical split with missing values sent left.
const (
	decisionNumerical   = 2
	decisionCategorical = 1
)

// Marshal renders b in the plain-text model format.
func Marshal(b *Booster) []byte {
	var buf bytes.Buffer
	objective := b.Objective
	if objective == "" {
		objective = "lambdarank"
	}

	buf.WriteString("tree\n")
	buf.WriteString("version=v3\n")
	buf.WriteString("num_class=1\n")
	buf.WriteString("num_tree_per_iteration=1\n")
	buf.WriteString("label_index=0\n")
	fmt.Fprintf(&buf, "max_feature_idx=%d\n", b.NumFeatures()-1)
	fmt.Fprintf(&buf, "objective=%s\n", objective)
	fmt.Fprintf(&buf, "feature_names=%s\n", strings.Join(b.FeatureNames, " "))
	buf.WriteString("\n")

	for i, t := range b.Trees {
		fmt.Fprintf(&buf, "Tree=%d\n", i)
		fmt.Fprintf(&buf, "num_leaves=%d\n", t.NumLeaves())
		buf.WriteString("num_cat=0\n")
		if len(t.SplitFeature) > 0 {
			fmt.Fprintf(&buf, "split_feature=%s\n", joinInts(t.SplitFeature))
			fmt.Fprintf(&buf, "threshold=%s\n", joinFloats(t.Threshold))
			decisions := make([]int, len(t.SplitFeature))
			for j := range decisions {
				decisions[j] = decisionNumerical
			}
			fmt.Fprintf(&buf, "decision_type=%s\n", joinInts(decisions))
			fmt.Fprintf(&buf, "left_child=%s\n", joinInts(t.Left))
			fmt.Fprintf(&buf, "right_child=%s\n", joinInts(t.Right))
		}
		fmt.Fprintf(&buf, "leaf_value=%s\n", joinFloats(t.LeafValue))
		fmt.Fprintf(&buf, "shrinkage=%s\n", strconv.FormatFloat(t.Shrinkage, 'g', -1, 64))
		buf.WriteString("\n\n")
	}
	buf.WriteString(endOfTrees + "\n")
	return buf.Bytes()
}

// Parse reads a booster from its text form. Sections after "end of trees" are ignored.
func Parse(r io.Reader) (*Booster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	b := &Booster{}
	maxFeatureIdx := -1
	var cur map[string]string
	var blocks []map[string]string
	sawHeader := false

	flush := func() {
		if cur != nil {
			blocks = append(blocks, cur)
			cur = nil
		}
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == endOfTrees {
			break
		}
		if line == "tree" && !sawHeader {
			sawHeader = true
			continue
		}
		if strings.HasPrefix(line, "Tree=") {
			flush()
			cur = map[string]string{}
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if cur != nil {
			cur[key] = value
			continue
		}
		switch key {
		case "max_feature_idx":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: max_feature_idx: %v", ErrMalformed, err)
			}
			maxFeatureIdx = n
		case "objective":
			if f := strings.Fields(value); len(f) > 0 {
				b.Objective = f[0]
			}
		case "feature_names":
			b.FeatureNames = strings.Fields(value)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	flush()

	if !sawHeader {
		return nil, fmt.Errorf("%w: missing header", ErrMalformed)
	}
	if maxFeatureIdx < 0 {
		return nil, fmt.Errorf("%w: missing max_feature_idx", ErrMalformed)
	}
	if len(b.FeatureNames) == 0 {
		b.FeatureNames = make([]string, maxFeatureIdx+1)
		for i := range b.FeatureNames {
			b.FeatureNames[i] = fmt.Sprintf("Column_%d", i)
		}
	}
	if len(b.FeatureNames) != maxFeatureIdx+1 {
		return nil, fmt.Errorf("%w: %d feature names for max_feature_idx %d", ErrMalformed, len(b.FeatureNames), maxFeatureIdx)
	}

	for i, block := range blocks {
		t, err := parseTree(block)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		b.Trees = append(b.Trees, t)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func parseTree(block map[string]string) (*Tree, error) {
	numLeaves, err := strconv.Atoi(block["num_leaves"])
	if err != nil {
		return nil, fmt.Errorf("%w: num_leaves: %v", ErrMalformed, err)
	}

	t := &Tree{}
	if t.LeafValue, err = parseFloats(block["leaf_value"]); err != nil {
		return nil, err
	}
	if len(t.LeafValue) != numLeaves {
		return nil, fmt.Errorf("%w: num_leaves=%d but %d leaf values", ErrMalformed, numLeaves, len(t.LeafValue))
	}
	if s, ok := block["shrinkage"]; ok {
		if t.Shrinkage, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("%w: shrinkage: %v", ErrMalformed, err)
		}
	}
	if numLeaves == 1 {
		return t, nil
	}

	if t.SplitFeature, err = parseInts(block["split_feature"]); err != nil {
		return nil, err
	}
	if t.Threshold, err = parseFloats(block["threshold"]); err != nil {
		return nil, err
	}
	if t.Left, err = parseInts(block["left_child"]); err != nil {
		return nil, err
	}
	if t.Right, err = parseInts(block["right_child"]); err != nil {
		return nil, err
	}
	if dt, ok := block["decision_type"]; ok {
		decisions, err := parseInts(dt)
		if err != nil {
			return nil, err
		}
		for _, d := range decisions {
			if d&decisionCategorical != 0 {
				return nil, fmt.Errorf("%w: categorical splits are not supported", ErrMalformed)
			}
		}
	}
	return t, nil
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', 17, 64)
	}
	return strings.Join(parts, " ")
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out[i] = n
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out[i] = x
	}
	return out, nil
}
