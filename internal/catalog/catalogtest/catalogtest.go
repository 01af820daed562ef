// Package catalogtest builds a small catalog on disk for tests.
package catalogtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hurou927/hydro-catalog/internal/catalog"
)

// RootToken is replaced with the data root in every table file.
const RootToken = "$ROOT"

// Tables is the default fixture, one CSV body per table.
var Tables = map[string]string{
	"dataset_type": `,description
forcing,Atmospheric forcing
static_inputs,Static model inputs
parflow,ParFlow simulation output
`,
	"dataset": `,description,dataset_type,paper_dois,dataset_dois,dataset_start_date,dataset_end_date,has_ensemble
NLDAS2,NLDAS2 forcing for CONUS1,forcing,10.1029/2011JD016048; 10.1029/2011JD016051,,2002-10-01,2006-09-30,false
CW3E,CW3E forcing for CONUS2,forcing,,10.5281/zenodo.1,2002-10-01,2006-09-30,false
conus1_domain,CONUS1 domain inputs,static_inputs,,,,,false
conus1_baseline_mod,CONUS1 baseline simulation,parflow,10.5194/gmd-8-923-2015,,2002-10-01,2006-09-30,false
conus1_baseline_clm,CONUS1 baseline land surface,parflow,,,2002-10-01,2006-09-30,false
tiny_forcing,Small forcing grid,forcing,,,2002-10-01,2006-09-30,false
tiny_ensemble,Small ensemble run,parflow,,,2002-10-01,2006-09-30,true
`,
	"variable_type": `,description
atmospheric,Atmospheric
subsurface,Subsurface
static,Static
land_surface,Land surface
`,
	"unit_type": `,description
mm,Millimeters
K,Kelvin
m,Meters
none,No unit
W/m2,Watts per square meter
`,
	"variable": `,description,variable_type,unit_type,has_z
precipitation,Precipitation,atmospheric,mm,false
air_temp,Air temperature,atmospheric,K,false
pressure_head,Pressure head,subsurface,m,true
mask,Domain mask,static,none,false
latent_heat,Latent heat flux,land_surface,W/m2,false
swe,Snow water equivalent,land_surface,mm,false
streamflow,Streamflow,subsurface,m,false
`,
	"period": `,description
hourly,Hourly
daily,Daily
monthly,Monthly
weekly,Weekly
static,Static
`,
	"aggregation": `,description
sum,Sum
mean,Mean
-,None
`,
	"file_type": `,description
pfb,ParFlow binary
C.pfb,CLM ParFlow binary
netcdf,NetCDF
tif,GeoTIFF
vegp,Vegetation parameters
`,
	"grid": `,description,shape,latlng_bounds,origin,resolution_meters,crs
conus1,CONUS1 1km,"[5, 1888, 3342]","[31.65, -115.98, 49.1, -76.11]","[-1885055.4995, -604957.0654]",1000,+proj=lcc +lat_1=33 +lat_2=45 +lon_0=-96.0 +lat_0=39 +a=6378137.0 +b=6356752.31
conus2,CONUS2 1km,"[10, 3256, 4442]","[22.36, -117.85, 51.8, -64.0]","[-2208000.30881173, -1668999.65483222]",1000,+proj=lcc +lat_1=30 +lat_2=60 +lon_0=-97.0 +lat_0=40.0000076294 +a=6370000.0 +b=6370000
tiny,Small test grid,"[3, 6, 7]",,"[0, 0]",1000,
`,
	"data_catalog_entry": `,dataset,file_type,variable,period,aggregation,grid,dataset_var,structure_type,path
1,NLDAS2,pfb,precipitation,daily,sum,conus1,APCP,gridded,$ROOT/NLDAS2/daily/WY{wy}/NLDAS.APCP.daily.sum.{wy_daynum:03d}.pfb
2,NLDAS2,netcdf,precipitation,daily,sum,conus1,APCP,gridded,$ROOT/NLDAS2/daily/WY{wy}/NLDAS.APCP.daily.sum.nc
3,CW3E,pfb,air_temp,hourly,-,conus2,Temp,gridded,$ROOT/CW3E/WY{wy}/CW3E.Temp.{wy_start_24hr:06d}_to_{wy_end_24hr:06d}.pfb
4,conus1_baseline_mod,pfb,pressure_head,daily,-,conus1,press,gridded,$ROOT/conus1/WY{wy}/press.{wy_daynum:05d}.pfb
5,conus1_domain,pfb,mask,static,-,conus1,mask,gridded,$ROOT/static/conus1_mask.pfb
6,conus1_domain,tif,mask,static,-,conus1,mask,gridded,$ROOT/static/conus1_mask.tif
7,conus1_baseline_clm,C.pfb,latent_heat,daily,-,conus1,eflx_lh_tot,gridded,$ROOT/clm/WY{wy}/clm.{wy_daynum:05d}.C.pfb
8,conus1_baseline_clm,C.pfb,swe,daily,-,conus1,swe_out,gridded,$ROOT/clm/WY{wy}/clm.{wy_daynum:05d}.C.pfb
9,conus1_baseline_mod,pfb,pressure_head,monthly,mean,conus1,press,gridded,$ROOT/conus1/WY{wy}/press.monthly.{month:02d}.pfb
10,conus1_baseline_mod,vegp,pressure_head,static,-,conus1,vegp,gridded,$ROOT/conus1/vegp_a.dat
11,conus1_baseline_mod,vegp,pressure_head,static,-,conus2,vegp,gridded,$ROOT/conus1/vegp_b.dat
12,CW3E,pfb,precipitation,hourly,sum,conus1,APCP,gridded,$ROOT/CW3E/conus1/APCP.{wy}.pfb
13,CW3E,pfb,precipitation,hourly,sum,conus2,APCP,gridded,$ROOT/CW3E/conus2/APCP.{wy}.pfb
20,tiny_forcing,pfb,precipitation,daily,sum,tiny,APCP,gridded,$ROOT/tiny/WY{wy}/tiny.APCP.daily.pfb
21,tiny_forcing,pfb,air_temp,hourly,-,tiny,Temp,gridded,$ROOT/tiny/WY{wy}/tiny.Temp.{wy_start_24hr:06d}_to_{wy_end_24hr:06d}.pfb
22,tiny_forcing,pfb,mask,static,-,tiny,mask,gridded,$ROOT/tiny/mask.pfb
23,tiny_forcing,C.pfb,swe,daily,-,tiny,swe_out,gridded,$ROOT/tiny/clm/clm.{wy_daynum:05d}.C.pfb
24,tiny_forcing,C.pfb,latent_heat,daily,-,tiny,bogus_var,gridded,$ROOT/tiny/clm/clm.{wy_daynum:05d}.C.pfb
25,tiny_forcing,netcdf,streamflow,daily,mean,tiny,flow,gridded,$ROOT/tiny/WY{wy}/flow.nc
26,tiny_forcing,tif,streamflow,static,-,tiny,flow,gridded,$ROOT/tiny/flow.tif
27,tiny_ensemble,pfb,pressure_head,daily,-,tiny,press,gridded,$ROOT/tiny/ens/run{run_number}/press.{wy_daynum:03d}.pfb
`,
}

// Dir writes the fixture tables to a temporary directory and returns it.
// root replaces RootToken in file paths.
func Dir(t *testing.T, root string) string {
	t.Helper()
	return WriteTables(t, root, Tables)
}

// WriteTables writes the given tables to a temporary directory.
func WriteTables(t *testing.T, root string, tables map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range tables {
		body = strings.ReplaceAll(body, RootToken, root)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".csv"), []byte(body), 0o644))
	}
	return dir
}

// Model loads the fixture into a denormalized model.
func Model(t *testing.T, root string) *catalog.Model {
	t.Helper()
	m, err := catalog.LoadDir(Dir(t, root))
	require.NoError(t, err)
	return m
}

// Handle wraps the fixture in a ready handle.
func Handle(t *testing.T, root string) *catalog.Handle {
	t.Helper()
	return catalog.FromModel(Model(t, root))
}
