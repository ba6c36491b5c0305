package backend

import "context"

// Traverse walks dir breadth-first through lister, down to maxDepth levels
// (maxDepth < 0 means unlimited). A visited set of canonical locations
// guards against cycles a buggy or adversarial backend might otherwise
// induce via symlink-like aliasing.
func Traverse(ctx context.Context, lister Lister, dir Location, maxDepth int) ([]Node, error) {
	var result []Node
	visited := map[Location]bool{dir: true}

	type queued struct {
		loc   Location
		depth int
	}
	queue := []queued{{dir, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		children, err := lister.List(ctx, cur.loc)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			if visited[child.Location] {
				continue
			}
			visited[child.Location] = true
			result = append(result, child)

			if child.IsDirectory && (maxDepth < 0 || cur.depth+1 < maxDepth) {
				queue = append(queue, queued{child.Location, cur.depth + 1})
			}
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
	}

	return result, nil
}
