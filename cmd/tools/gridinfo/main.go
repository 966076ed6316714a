// Command gridinfo inspects a saved occupancy grid, either from a grid file
// or from the latest database snapshot, and prints occupancy and component
// statistics.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/occupancy"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/vgtdb"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
)

func main() {
	var gridPath string
	var dbPath string
	var gridID string
	var topology bool
	var runs int

	flag.StringVar(&gridPath, "grid", "", "path to a saved grid file")
	flag.StringVar(&dbPath, "db", "", "sqlite database holding grid snapshots")
	flag.StringVar(&gridID, "grid-id", "voxelize-cli", "grid id to restore from the database")
	flag.BoolVar(&topology, "topology", false, "recompute holes and voids per filled component")
	flag.IntVar(&runs, "runs", 0, "also list the N most recent voxelization runs (needs -db)")
	flag.Parse()

	if gridPath == "" && dbPath == "" {
		log.Fatalf("need -grid or -db")
	}

	var g *occupancy.Grid
	var err error
	switch {
	case gridPath != "":
		g, err = occupancy.LoadFromFile(gridPath)
		if err != nil {
			log.Fatalf("load grid: %v", err)
		}
		fmt.Printf("Grid file %s\n", gridPath)
	default:
		db, openErr := vgtdb.NewDB(dbPath)
		if openErr != nil {
			log.Fatalf("open db: %v", openErr)
		}
		defer db.Close()

		var snap *occupancy.GridSnapshot
		g, snap, err = occupancy.RestoreLatest(db, gridID)
		if err != nil {
			log.Fatalf("restore snapshot: %v", err)
		}
		fmt.Printf("Snapshot %d of grid %q taken %s (%s)\n", *snap.SnapshotID, snap.GridID,
			time.Unix(0, snap.TakenUnixNanos).Format(time.RFC3339), snap.SnapshotReason)

		if runs > 0 {
			listRuns(db, runs)
		}
	}

	printGrid(g, topology)
}

func printGrid(g *occupancy.Grid, topology bool) {
	sizes := g.Sizes()
	origin := g.Origin().Translation()
	fmt.Printf("Frame %q, %dx%dx%d cells at %.3g m, origin (%.2f, %.2f, %.2f)\n",
		g.Frame(), sizes.NumXCells, sizes.NumYCells, sizes.NumZCells,
		g.Resolution(), origin.X, origin.Y, origin.Z)

	var counts [3]int64
	sizes.ForEach(func(idx voxelgrid.Index) bool {
		counts[g.State(idx).Classification()]++
		return true
	})
	total := g.TotalCells()
	fmt.Printf("Occupancy: %d filled, %d free, %d unknown (%d total)\n",
		counts[occupancy.Filled], counts[occupancy.Free], counts[occupancy.Unknown], total)

	if num, valid := g.NumConnectedComponents(); valid {
		fmt.Printf("Connected components: %d (labels current)\n", num)
	} else {
		fmt.Println("Connected components: stale, relabelling")
		fmt.Printf("Connected components: %d\n", g.UpdateConnectedComponents())
	}

	// Cells per component, component 0 being the unlabelled background.
	perComponent := map[uint32]int64{}
	sizes.ForEach(func(idx voxelgrid.Index) bool {
		if c := g.ComponentAt(idx); c != 0 {
			perComponent[c]++
		}
		return true
	})
	ids := make([]uint32, 0, len(perComponent))
	for id := range perComponent {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Printf("  component %d: %d cells\n", id, perComponent[id])
	}

	if topology {
		invariants, err := g.ComputeComponentTopology(occupancy.FilledComponents, true, false)
		if err != nil {
			log.Fatalf("component topology: %v", err)
		}
		for _, id := range ids {
			if topo, ok := invariants[id]; ok {
				fmt.Printf("  filled component %d: holes=%d voids=%d\n", id, topo.Holes, topo.Voids)
			}
		}
	}
}

func listRuns(db *vgtdb.DB, limit int) {
	records, err := db.ListVoxelizationRuns(limit)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	fmt.Printf("Recent voxelization runs (%d):\n", len(records))
	for _, r := range records {
		fmt.Printf("  %s  %s on %s  %d clouds / %d points  raycast %v  filter %v\n",
			r.StartedAt.Format(time.RFC3339), r.Backend, r.DeviceName,
			r.NumClouds, r.NumPoints, r.Raycasting, r.Filtering)
	}
}
