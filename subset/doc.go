// Package subset reads entities through declarative views called subsets.
//
// A subset names the columns to select, the single-row joins to apply, the
// virtual fields to compute after the query and the to-many relations to
// eager-load. It is declared once, usually in YAML:
//
//	entities:
//	  employee:
//	    search: [name, email]
//	    default_search: name
//	    default_order: id-asc
//	    subsets:
//	      detail:
//	        select:
//	          - name
//	          - department.name
//	          - department__company.name
//	        joins:
//	          - {as: department, table: departments, from: department_id, to: id}
//	          - {as: department__company, kind: outer, table: companies, from: department.company_id, to: id}
//	        loaders:
//	          - as: projects
//	            table: projects
//	            many_join:
//	              through: {table: project_employees, from: employee_id, to: project_id}
//	            select: [name]
//
// Resolving "employee/detail" runs the base query (and a count), nests the
// "department__company__name" column as row["department"]["company"]["name"],
// then runs one query for the projects of the whole page:
//
//	cfg, err := subset.LoadFile("subsets.yaml")
//	if err != nil {
//		return err
//	}
//	r, err := subset.NewResolver(query.New(drv), cfg)
//	if err != nil {
//		return err
//	}
//	res, err := r.Resolve(ctx, "employee", "detail", subset.ListParams{Keyword: "ann"}, nil)
//
// Loaders nest: each depth costs one query per loader, independent of the
// number of parent rows.
package subset
